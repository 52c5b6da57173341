package tool

// Profile names group tools into coarse capability tiers an agent can
// be assigned without the caller having to enumerate individual tool
// names in config.
const (
	ProfileMinimal = "minimal"
	ProfileCoding  = "coding"
	ProfileFull    = "full"
)

// builtinProfiles maps a profile name to the built-in tool names it
// grants. MCP-bridged tools are always additive on top of a profile —
// profiles only gate the built-ins.
var builtinProfiles = map[string][]string{
	ProfileMinimal: {"read_file", "list_files"},
	ProfileCoding:  {"read_file", "write_file", "list_files", "exec"},
	ProfileFull:    {"read_file", "write_file", "list_files", "exec"},
}

// toolAliases lets config/spec text refer to a tool by a friendlier
// name than its registered one (mirrors the common "bash" -> "exec"
// rename seen across agent harnesses).
var toolAliases = map[string]string{
	"bash": "exec",
}

// ResolveAlias returns the canonical registered name for a possibly
// aliased tool name.
func ResolveAlias(name string) string {
	if canon, ok := toolAliases[name]; ok {
		return canon
	}
	return name
}

// Policy decides which tools a given run may see, combining a named
// profile, an explicit allow-list, and an explicit deny-list. Deny
// always wins over allow; an empty allow-list with a non-empty profile
// falls back to the profile's tools.
type Policy struct {
	Profile string
	Allow   []string
	Deny    []string
}

// subagentDenyList blocks tools that would let a sub-agent spawn
// further sub-agents, preventing unbounded recursive fan-out.
var subagentDenyList = []string{"spawn_subagent"}

// Allowed returns the final set of tool names visible to a run given
// every registered tool name and this policy, applying (in order):
// profile defaults, explicit allow overrides, then deny removal.
func (p Policy) Allowed(allRegistered []string, isSubagent bool) []string {
	var base map[string]bool
	if len(p.Allow) > 0 {
		base = toSet(p.Allow)
	} else if names, ok := builtinProfiles[p.Profile]; ok {
		base = toSet(names)
		// MCP and other non-builtin tools are additive under a named
		// profile since profiles only describe built-in tiers.
		builtinSet := toSet(flattenProfiles())
		for _, name := range allRegistered {
			if !builtinSet[name] {
				base[name] = true
			}
		}
	} else {
		base = toSet(allRegistered)
	}

	deny := toSet(p.Deny)
	if isSubagent {
		for _, d := range subagentDenyList {
			deny[d] = true
		}
	}

	out := make([]string, 0, len(base))
	for _, name := range allRegistered {
		if !base[name] {
			continue
		}
		if deny[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

func flattenProfiles() []string {
	seen := map[string]bool{}
	var out []string
	for _, names := range builtinProfiles {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}
