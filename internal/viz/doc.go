// Package viz renders brews and Pareto fronts for the terminal: asciigraph
// plots of trace fields and lipgloss-styled report tables.
package viz
