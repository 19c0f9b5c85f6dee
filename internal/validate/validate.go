// Package validate cross-checks the record counts of a parsed sale.
package validate

import "gds_parser/internal/diag"

// Sale returns the advisory warnings for a sale with the given record
// counts. Every check runs on its own, so all of them may fire at once.
func Sale(passengers, flights, prices int) []diag.Warning {
	var ws []diag.Warning
	if prices != passengers {
		ws = append(ws, diag.Warning{Category: diag.CategoryStack, Value: diag.CountMismatch})
	}
	if passengers == 0 {
		ws = append(ws, diag.Warning{Category: diag.CategoryStack, Value: diag.NoPassengers})
	}
	if flights == 0 {
		ws = append(ws, diag.Warning{Category: diag.CategoryStack, Value: diag.NoFlights})
	}
	return ws
}
