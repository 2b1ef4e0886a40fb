// Package cli is a small flag-parsing and help-page framework: long and
// short flags, repeatable list flags and prefix flags in the -DNAME=VALUE
// style, plus generated usage and help pages sized to the terminal.
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value %q: %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     Value
	ArgName   string // placeholder in help, empty for booleans
}

// A Section is an extra block on the help page, used for enumerations such
// as the available warning names.
type Section struct {
	Title   string
	Entries [][2]string // name, description
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	prefixes   map[string]*Flag
	order      []string
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
		prefixes:   make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, argName string) {
	*p = value
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &stringValue{p}, ArgName: argName})
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &boolValue{p}})
}

func (f *FlagSet) List(p *[]string, name, shorthand, usage, argName string) {
	*p = nil
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &listValue{p}, ArgName: argName})
}

// Prefix registers a glued-argument flag: -D<arg>, -W<arg> and the like.
// Every occurrence appends its argument to p.
func (f *FlagSet) Prefix(p *[]string, prefix, usage, argName string) {
	*p = nil
	fl := &Flag{Name: prefix, Usage: usage, Value: &listValue{p}, ArgName: argName}
	f.add(fl)
	f.prefixes[prefix] = fl
}

func (f *FlagSet) add(fl *Flag) {
	if fl.Name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[fl.Name]; ok {
		panic("flag redefined: " + fl.Name)
	}
	f.flags[fl.Name] = fl
	f.order = append(f.order, fl.Name)
	if fl.Shorthand != "" {
		if _, ok := f.shorthands[fl.Shorthand]; ok {
			panic("shorthand redefined: " + fl.Shorthand)
		}
		f.shorthands[fl.Shorthand] = fl
	}
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		case strings.HasPrefix(arg, "--"):
			if err := f.parseLong(arg, arguments, &i); err != nil {
				return err
			}
		default:
			if err := f.parseShort(arg, arguments, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *FlagSet) parseLong(arg string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(arg[2:], "=")
	fl, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	if hasValue {
		return fl.Value.Set(value)
	}
	if _, isBool := fl.Value.(*boolValue); isBool {
		return fl.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: --%s", name)
	}
	*i++
	return fl.Value.Set(arguments[*i])
}

func (f *FlagSet) parseShort(arg string, arguments []string, i *int) error {
	for prefix, fl := range f.prefixes {
		if strings.HasPrefix(arg[1:], prefix) && len(arg) > len(prefix)+1 {
			return fl.Value.Set(arg[len(prefix)+1:])
		}
	}
	fl, ok := f.shorthands[arg[1:2]]
	if !ok {
		return fmt.Errorf("unknown flag: -%s", arg[1:2])
	}
	if _, isBool := fl.Value.(*boolValue); isBool {
		if len(arg) > 2 {
			return fmt.Errorf("flag does not take an argument: -%s", arg[1:2])
		}
		return fl.Value.Set("")
	}
	if len(arg) > 2 {
		return fl.Value.Set(arg[2:])
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", arg[1:2])
	}
	*i++
	return fl.Value.Set(arguments[*i])
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Repository  string
	FlagSet     *FlagSet
	Sections    []Section
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Usage: %s %s\nRun '%s --help' for the available options.\n",
			a.Name, a.Synopsis, a.Name)
		return err
	}
	if help {
		a.printHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) printHelp(w *os.File) {
	width := terminalWidth()
	var sb strings.Builder

	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		sb.WriteString("\n")
		for _, line := range wrapText(a.Description, width-4) {
			fmt.Fprintf(&sb, "    %s\n", line)
		}
	}

	left := make(map[string]string, len(a.FlagSet.order))
	maxLeft := 0
	for _, name := range a.FlagSet.order {
		s := a.flagLabel(a.FlagSet.flags[name])
		left[name] = s
		if len(s) > maxLeft {
			maxLeft = len(s)
		}
	}
	for _, sec := range a.Sections {
		for _, e := range sec.Entries {
			if len(e[0]) > maxLeft {
				maxLeft = len(e[0])
			}
		}
	}

	sb.WriteString("\nOptions\n")
	names := make([]string, len(a.FlagSet.order))
	copy(names, a.FlagSet.order)
	sort.Strings(names)
	for _, name := range names {
		writeEntry(&sb, left[name], a.FlagSet.flags[name].Usage, maxLeft, width)
	}

	for _, sec := range a.Sections {
		fmt.Fprintf(&sb, "\n%s\n", sec.Title)
		for _, e := range sec.Entries {
			writeEntry(&sb, e[0], e[1], maxLeft, width)
		}
	}

	if a.Repository != "" {
		fmt.Fprintf(&sb, "\nFor more details refer to %s\n", a.Repository)
	}
	fmt.Fprint(w, sb.String())
}

func (a *App) flagLabel(fl *Flag) string {
	if _, isPrefix := a.FlagSet.prefixes[fl.Name]; isPrefix {
		return fmt.Sprintf("-%s<%s>", fl.Name, fl.ArgName)
	}
	var sb strings.Builder
	if fl.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", fl.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", fl.Name)
	if fl.ArgName != "" {
		fmt.Fprintf(&sb, " <%s>", fl.ArgName)
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, left, usage string, maxLeft, width int) {
	avail := width - maxLeft - 7
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(sb, "    %-*s  %s\n", maxLeft, left, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "    %-*s  %s\n", maxLeft, "", line)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	for _, word := range words {
		if cur.Len() > 0 && cur.Len()+1+len(word) > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
