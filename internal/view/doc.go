// Package view renders the HTML pages served next to the API.
package view
