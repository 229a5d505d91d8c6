// Package display renders taskpilot results for the terminal.
//
// Every function writes to an io.Writer. Colors come from fatih/color, so
// they follow color.NoColor and disappear when output is not a terminal.
//
//	display.Tasks(os.Stdout, tasks)
//
//	display.Warning{
//	    Title:      "Files not found",
//	    Files:      missing,
//	    Suggestion: "Check the --file arguments",
//	}.Display(os.Stderr)
package display
