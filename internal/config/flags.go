package config

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/cam3ron2/oss-contributions/internal/ordering"
)

// sliceFlag collects every occurrence of a repeatable flag.
type sliceFlag []string

func (s *sliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *sliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Flags holds command-line values bound to a flag.FlagSet.
type Flags struct {
	set *flag.FlagSet

	ConfigPath string

	users            sliceFlag
	positional       []string
	organization     string
	from             string
	to               string
	minStargazers    int
	contributionOnly bool
	includePersonal  bool
	includePrivate   bool
	includeInactive  bool
	issues           bool
	sort             string
	template         string
	logLevel         string
	metricsFile      string
}

// aliases maps short flag names to their long form.
var aliases = map[string]string{
	"u": "user",
	"o": "organization",
	"f": "from",
	"t": "to",
	"m": "min-stargazers",
	"c": "contribution-only",
	"i": "include-personal",
	"s": "sort",
	"r": "render",
}

// BindFlags registers every option on set. Short names share their long form's value.
func BindFlags(set *flag.FlagSet) *Flags {
	f := &Flags{set: set}

	set.StringVar(&f.ConfigPath, "config", "", "YAML configuration file")

	usage := map[string]string{
		"user":              "User whose contributions are analyzed. Can be specified multiple times",
		"organization":      "Organization whose members are added to the users",
		"from":              "Date (YYYY-MM-DD) to start enumerating contributions from",
		"to":                "Date (YYYY-MM-DD) to stop enumerating contributions at",
		"min-stargazers":    "Exclude repositories with fewer stargazers than this",
		"contribution-only": "Exclude contributions by the repository owner",
		"include-personal":  "Include repositories that only have contributions by their owner",
		"sort": fmt.Sprintf(
			"Order of repositories and contributors: max-contribution, total-contributions, total-contributors, stargazers, or comma separated criteria (%s)",
			strings.Join(ordering.DimensionNames(), ", "),
		),
		"render": "Template file used to render the report instead of JSON",
	}
	for _, name := range []string{"user", "u"} {
		set.Var(&f.users, name, usage["user"])
	}
	for _, name := range []string{"organization", "o"} {
		set.StringVar(&f.organization, name, "", usage["organization"])
	}
	for _, name := range []string{"from", "f"} {
		set.StringVar(&f.from, name, "", usage["from"])
	}
	for _, name := range []string{"to", "t"} {
		set.StringVar(&f.to, name, "", usage["to"])
	}
	for _, name := range []string{"min-stargazers", "m"} {
		set.IntVar(&f.minStargazers, name, 0, usage["min-stargazers"])
	}
	for _, name := range []string{"contribution-only", "c"} {
		set.BoolVar(&f.contributionOnly, name, false, usage["contribution-only"])
	}
	for _, name := range []string{"include-personal", "i"} {
		set.BoolVar(&f.includePersonal, name, false, usage["include-personal"])
	}
	for _, name := range []string{"sort", "s"} {
		set.StringVar(&f.sort, name, "", usage["sort"])
	}
	for _, name := range []string{"render", "r"} {
		set.StringVar(&f.template, name, "", usage["render"])
	}

	set.BoolVar(&f.includePrivate, "include-private", false, "Include private repositories")
	set.BoolVar(&f.includeInactive, "include-inactive", false, "Include archived, disabled and locked repositories")
	set.BoolVar(&f.issues, "issues", false, "Also count issues opened")
	set.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	set.StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics to this Prometheus textfile")

	return f
}

// Parse parses args, accepting flags before and after positional users.
// Everything after a "--" terminator is positional.
func (f *Flags) Parse(args []string) error {
	f.positional = nil
	for {
		if err := f.set.Parse(args); err != nil {
			return err
		}
		rest := f.set.Args()
		if len(rest) == 0 {
			return nil
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			f.positional = append(f.positional, rest...)
			return nil
		}
		f.positional = append(f.positional, rest[0])
		args = rest[1:]
	}
}

// PrintDefaults writes one usage entry per option, listing a short name next
// to its long form.
func (f *Flags) PrintDefaults(w io.Writer) {
	shortNames := make(map[string]string, len(aliases))
	for short, long := range aliases {
		shortNames[long] = short
	}
	f.set.VisitAll(func(fl *flag.Flag) {
		if _, isShort := aliases[fl.Name]; isShort {
			return
		}
		names := "--" + fl.Name
		if short, ok := shortNames[fl.Name]; ok {
			names = "-" + short + ", " + names
		}
		valueName, usage := flag.UnquoteUsage(fl)
		if valueName != "" {
			names += " " + valueName
		}
		_, _ = fmt.Fprintf(w, "  %s\n    \t%s\n", names, usage)
	})
}

// Apply overlays every flag that was set on the command line, and any
// positional arguments as users, onto cfg.
func (f *Flags) Apply(cfg *Config) error {
	visited := map[string]bool{}
	f.set.Visit(func(fl *flag.Flag) {
		name := fl.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		visited[name] = true
	})

	positional := f.positional
	if visited["user"] || len(positional) > 0 {
		users := make([]string, 0, len(f.users)+len(positional))
		users = append(users, f.users...)
		users = append(users, positional...)
		cfg.Users = users
	}
	if visited["organization"] {
		cfg.Organization = f.organization
	}
	if visited["from"] {
		from, err := ParseDate(f.from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		cfg.From = from
	}
	if visited["to"] {
		to, err := ParseDate(f.to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		cfg.To = to
	}
	if visited["min-stargazers"] {
		cfg.MinStargazers = f.minStargazers
	}
	if visited["contribution-only"] {
		cfg.ContributionOnly = f.contributionOnly
	}
	if visited["include-personal"] {
		cfg.IncludePersonal = f.includePersonal
	}
	if visited["include-private"] {
		cfg.IncludePrivate = f.includePrivate
	}
	if visited["include-inactive"] {
		cfg.IncludeInactive = f.includeInactive
	}
	if visited["issues"] {
		cfg.Issues = f.issues
	}
	if visited["sort"] {
		cfg.Sort = f.sort
	}
	if visited["render"] {
		cfg.Template = f.template
	}
	if visited["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if visited["metrics-file"] {
		cfg.Metrics.Textfile = f.metricsFile
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the YAML file
// named by --config, then the environment, then command-line flags.
func Resolve(f *Flags, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(f.ConfigPath) != "" {
		parsed, err := ParseFile(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}
	ApplyEnv(cfg, lookup)
	if err := f.Apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
