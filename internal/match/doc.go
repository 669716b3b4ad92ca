// Package match provides types and functions for tracking hockey matches listed
// on the club's ticket page.
//
// The match package handles match representation, identification, and change
// detection through snapshot-based diffing. Each match is assigned a
// deterministic SHA1-based key generated from its title and display date,
// enabling reliable tracking across runs. It also normalizes the abbreviated
// Russian date fragments scraped from the page into display strings and
// concrete start times.
package match
