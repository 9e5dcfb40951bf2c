// Package utils provides common utility functions for the asset-sync application.
// It includes loose type conversion helpers used when reading custom attribute
// values coming from the source tree, whose concrete Go types are not fixed.
package utils
