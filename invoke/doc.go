// Package invoke turns command-line text into typed call arguments and
// engine results back into values for display.
package invoke
