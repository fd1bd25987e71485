// Package logs locates and tails per-run log files.
//
// Every CLI run writes a timestamped log file under the configured log
// directory. This package finds the newest one and reads its last lines,
// optionally following new output the way `tail -f` does.
package logs
