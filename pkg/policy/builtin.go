package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		allowedModulesPolicy(),
		equationNamingPolicy(),
		groupSizePolicy(),
	}
}

// allowedModulesPolicy restricts imports to input.settings.allowed_modules.
func allowedModulesPolicy() Policy {
	return Policy{
		Name:        "allowed-modules",
		Description: "Denies imports of modules outside the configured allow list",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"imports", "security"},
		Rego: `package xeq.policies.modules

import rego.v1

# An empty allow list permits every module.
deny contains violation if {
	count(input.settings.allowed_modules) > 0
	some group in input.groups
	some decl in group.declarations
	decl.module != ""
	not decl.module in input.settings.allowed_modules
	violation := {
		"message": sprintf("module '%s' is not in the allowed list", [decl.module]),
		"severity": "error",
		"group": group.index,
		"equation": decl.name,
	}
}
`,
	}
}

// equationNamingPolicy enforces identifier-style equation names.
func equationNamingPolicy() Policy {
	return Policy{
		Name:        "equation-naming",
		Description: "Equation names must be identifiers and must not be dunder names",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		Rego: `package xeq.policies.naming

import rego.v1

deny contains violation if {
	some group in input.groups
	some decl in group.declarations
	not regex.match("^[A-Za-z_][A-Za-z0-9_]*$", decl.name)
	violation := {
		"message": sprintf("equation name '%s' is not a valid identifier", [decl.name]),
		"severity": "error",
		"group": group.index,
		"equation": decl.name,
	}
}

deny contains violation if {
	some group in input.groups
	some decl in group.declarations
	startswith(decl.name, "__")
	violation := {
		"message": sprintf("equation name '%s' must not start with '__'", [decl.name]),
		"severity": "error",
		"group": group.index,
		"equation": decl.name,
	}
}
`,
	}
}

// groupSizePolicy flags groups declaring more than max_group_size names.
func groupSizePolicy() Policy {
	return Policy{
		Name:        "group-size",
		Description: "Warns when a group declares more equations than max_group_size",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"maintainability"},
		Rego: `package xeq.policies.size

import rego.v1

deny contains violation if {
	input.settings.max_group_size > 0
	some group in input.groups
	n := count(group.declarations)
	n > input.settings.max_group_size
	violation := {
		"message": sprintf("group %d declares %d equations, the limit is %d", [group.index, n, input.settings.max_group_size]),
		"severity": "warning",
		"group": group.index,
	}
}
`,
	}
}
