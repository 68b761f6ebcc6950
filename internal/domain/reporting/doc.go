// Package reporting turns failures into structured, severity-tagged
// reports meant for people.
//
// A Reporter keeps the most recent reports in a fixed-size ring, logs each
// one at a level matching its severity and notifies registered observers.
// Nothing in ReportError can panic or return an error; a failure while
// building a report still yields a minimal one.
package reporting
