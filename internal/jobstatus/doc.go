// Package jobstatus holds the observable state of the current batch run.
//
// A single Store is shared by the run goroutine, which applies compound
// mutations through Update, and any number of observers, which read deep
// copies through Snapshot. The State type encodes the run lifecycle and the
// transitions the controller is permitted to make.
package jobstatus
