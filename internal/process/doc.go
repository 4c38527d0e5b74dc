// Package process supervises the external capture tools.
//
// A Supervisor starts a program with stderr merged into stdout, forwards each
// output line to the logger (raw lines at DEBUG, sampled progress at INFO) and
// to an optional console mirror, and reports the exit status. Two programs can
// be chained into a relay where only the consumer's exit status counts.
//
// On cancellation the child is asked to quit ("q" on stdin, or an interrupt
// for relay consumers) so it can finalize its output file; after the grace
// period the whole process group is terminated.
package process
