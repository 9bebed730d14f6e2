// Package report renders a session's metric timeline for people to look
// at: an interactive go-echarts HTML page and a static gonum/plot PNG.
package report
