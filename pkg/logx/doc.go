// Package logx is hwbot's logging front end over zerolog.
//
// Components take a Logger value and derive children with With. Loggers from
// New follow Service.Apply, so a config reload changes level and outputs
// without rebuilding components. Console lines carry a short file:line
// caller; file output is JSON.
package logx
