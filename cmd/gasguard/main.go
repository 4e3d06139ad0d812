// Package main provides the gasguard command line.
//
// Usage:
//
//	gasguard serve
//	gasguard score readings.csv --format json
//	gasguard train history.csv --output iso_forest_model.bin
package main

func main() {
	Execute()
}
