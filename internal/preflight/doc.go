// Package preflight provides readiness checks for the external tools, services
// and filesystem paths that signprep stages depend on.
//
// These checks run in two contexts:
//   - Each stage command calls CheckSystemDeps for its own stage and refuses
//     to start when a required binary is missing.
//   - The "signprep status" command calls RunAll and CollectToolStatus to
//     display overall readiness.
package preflight
