package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "configure":
		if err := runConfigure(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "install":
		if err := runInstall(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("gosqlmcp — SQLite MCP Server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gosqlmcp serve       Start the MCP server (stdio or http)")
	fmt.Println("  gosqlmcp configure   Run interactive configuration wizard")
	fmt.Println("  gosqlmcp doctor      Check configuration and database health")
	fmt.Println("  gosqlmcp install     Register the server in Claude Desktop")
	fmt.Println("  gosqlmcp --help      Show this help message")
}
