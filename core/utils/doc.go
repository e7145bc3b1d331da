// Package utils provides common utility functions for the relation-manager application.
// It includes helper functions for type conversion of loosely typed database and
// request values.
package utils
