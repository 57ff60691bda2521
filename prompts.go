package sqlitemcp

import "fmt"

// Prompt templates for common data analysis tasks. Pure functions: the
// argument is embedded verbatim with no validation and no database access —
// the output is advisory text for a language model, not executable SQL.

// AnalyzeTablePrompt renders the instructional text asking a language model
// to analyze one table.
func AnalyzeTablePrompt(table string) string {
	return fmt.Sprintf(
		"Analyze the table '%s' from the SQLite database. Provide insights about the data structure, "+
			"list key columns, and suggest potential data cleaning or further analysis steps.",
		table,
	)
}

// DescribeQueryPrompt renders the instructional text asking a language model
// to explain a SQL query.
func DescribeQueryPrompt(query string) string {
	return fmt.Sprintf(
		"I executed the following SQL query:\n\n%s\n\n"+
			"Please explain what this query does, interpret the results, and suggest improvements if applicable.",
		query,
	)
}
