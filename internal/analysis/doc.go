// Package analysis works on recorded trajectories: the power spectrum of a
// column, phase portraits of two columns and Poincaré sections.
//
//	freqs, power := analysis.Spectrum(series, dt)
//	f := analysis.DominantFrequency(series, dt)
//
// Inputs are the rows stored for a run, so nothing here integrates.
package analysis
