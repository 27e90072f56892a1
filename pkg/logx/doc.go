// Package logx provides a small structured logging facade over zerolog.
//
// Services hold a Logger tagged with a fixed "comp" field; the backing
// Service can swap sinks and levels at runtime via Apply().
package logx
