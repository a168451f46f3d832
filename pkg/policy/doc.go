// Package policy lints workbooks with Open Policy Agent (OPA) Rego policies.
//
// A workbook is parsed group by group and turned into an Input document:
// the workbook name, every group with its declarations (name, type,
// dependencies, imported module), the set of imported modules, and the
// configured Settings. Each enabled policy queries the deny set of its
// Rego package against that input.
//
// # Built-in policies
//
//   - allowed-modules: imports outside Settings.AllowedModules are errors.
//   - equation-naming: names must be identifiers and must not start with "__".
//   - group-size: groups larger than Settings.MaxGroupSize are warnings.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger, policy.SettingsFrom(cfg.Policy))
//	if err != nil {
//	    return err
//	}
//	result, err := eng.EvaluateWorkbook(ctx, wb, scriptEngine)
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    for _, v := range result.Blocking() {
//	        fmt.Println(v.Policy, v.Message)
//	    }
//	}
//
// # Custom policies
//
// Additional .rego or .json policies are loaded with LoadPolicies. A deny
// entry is either a message string or an object with "message" and
// optional "severity", "group" and "equation" keys. A "# severity: <level>"
// comment in a .rego file sets the policy's default severity.
package policy
