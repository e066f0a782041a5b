// Package progress translates stage-local progress into a job-wide percentage.
//
// Each job owns one Mapper built from its kind's band table. Stages whose own
// counters restart at zero (each file in a folder restarts extraction) would
// otherwise make the job percentage jump backward; the Mapper keeps a
// high-water mark and never returns less than it has already returned.
package progress
