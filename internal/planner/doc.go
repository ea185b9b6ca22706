// Package planner chooses the order in which axes are traversed.
//
// The route only changes how many interactions a run costs, never what it
// collects. The baseline policy puts the axis with the most values innermost.
// The optimize policy uses sampled conditional branching factors instead of
// marginal counts and falls back to the baseline when they are missing.
package planner
