package expose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bjaus/expose/types"
)

// CLIInterface exposes a function as a command line command. Required
// parameters are positional; everything else is a flag.
type CLIInterface struct {
	*Interface
	positional []string
	options    []string
	shorthand  map[string]string
	behavior   map[string]types.CLIBehavior
	outputs    Formatter

	// versionFlag is set when --version prints the CLI version. An option
	// named version takes the flag over.
	versionFlag bool
}

func newCLIInterface(i *Interface) *CLIInterface {
	c := &CLIInterface{
		Interface: i,
		shorthand: make(map[string]string),
		behavior:  make(map[string]types.CLIBehavior),
		outputs:   i.config.output,
	}
	if c.outputs == nil {
		c.outputs = Text
	}

	_, versionDirective := i.directives["version"]
	versionOption := slices.Contains(i.params, "version") && !slices.Contains(i.required, "version") &&
		i.fn.Variadic != "version" && !versionDirective
	c.versionFlag = i.config.cliVersion != "" && !versionOption

	used := map[string]bool{"h": true, "help": true}
	if c.versionFlag {
		used["v"], used["version"] = true, true
	}
	for _, name := range i.params {
		if _, ok := i.directives[name]; ok {
			continue
		}
		if t, ok := i.coercions[name]; ok {
			c.behavior[name] = types.CLIOf(t)
		}
		if name == i.fn.Variadic {
			continue
		}
		if slices.Contains(i.required, name) {
			c.positional = append(c.positional, name)
			continue
		}
		c.options = append(c.options, name)
		if short := name[:1]; !used[short] {
			c.shorthand[name] = short
			used[short] = true
		}
		used[name] = true
	}
	return c
}

// Usage returns the help text.
func (c *CLIInterface) Usage() string {
	fs, _ := c.flagSet()
	var b strings.Builder
	b.WriteString("usage: " + c.name)
	if len(c.options) > 0 {
		b.WriteString(" [flags]")
	}
	for _, name := range c.positional {
		b.WriteString(" " + name)
	}
	if c.fn.Variadic != "" {
		b.WriteString(" [" + c.fn.Variadic + " ...]")
	}
	b.WriteString("\n")
	if c.doc != "" {
		b.WriteString("\n" + strings.TrimSpace(c.doc) + "\n")
	}
	if flags := fs.FlagUsages(); flags != "" {
		b.WriteString("\nflags:\n" + flags)
	}
	return b.String()
}

// flagSet builds a fresh flag set; the returned map holds the value
// pointers per option.
func (c *CLIInterface) flagSet() (*pflag.FlagSet, map[string]any) {
	fs := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)

	values := make(map[string]any, len(c.options))
	for _, name := range c.options {
		p, _ := c.fn.param(name)
		b := c.behavior[name]
		help := p.Doc
		if help == "" {
			if t, ok := c.coercions[name]; ok {
				help = t.Description()
			}
		}
		if len(b.Choices) > 0 {
			help += " (one of: " + strings.Join(b.Choices, ", ") + ")"
		}

		short := c.shorthand[name]
		def, hasDefault := c.defaults[name]
		switch {
		case b.Action == "store_true" && (!hasDefault || def == false):
			values[name] = fs.BoolP(name, short, false, help)
		case b.Action == "append":
			values[name] = fs.StringArrayP(name, short, nil, help)
		default:
			defText := ""
			if hasDefault && def != nil {
				defText = fmt.Sprint(def)
			}
			values[name] = fs.StringP(name, short, defText, help)
		}
	}
	if c.versionFlag {
		values["version"] = fs.BoolP("version", "v", false, "print the version and exit")
	}
	return fs, values
}

// Run parses argv, calls the function and writes the formatted result to
// stdout. --help prints the usage and returns nil.
func (c *CLIInterface) Run(ctx context.Context, argv []string, stdout io.Writer) error {
	call := &Call{Context: ctx, Registry: c.registry, Version: NoVersion}

	if conclusion := c.checkRequirements(call); conclusion != nil {
		return c.write(call, stdout, conclusion)
	}

	fs, values := c.flagSet()
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			_, err := io.WriteString(stdout, c.Usage())
			return err
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	if c.versionFlag && *values["version"].(*bool) {
		_, err := fmt.Fprintf(stdout, "%s %s\n", c.name, c.config.cliVersion)
		return err
	}

	input, err := c.collect(fs, values)
	if err != nil {
		return err
	}
	call.Args = input

	if err := c.resolveDirectives(call, input); err != nil {
		return err
	}
	errs, err := c.validate(input)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		data, err := c.invalid(errs)
		if err != nil {
			return err
		}
		if err := c.write(call, stdout, data); err != nil {
			return err
		}
		return fmt.Errorf("%s: %w", c.name, ErrInvalidInput)
	}

	result, err := c.call(ctx, input)
	if err != nil {
		return err
	}
	result, err = c.applyTransform(result)
	if err != nil {
		return err
	}
	return c.write(call, stdout, result)
}

// collect turns parsed flags and positional arguments into input. Flags
// left at their default are omitted so defaults keep their native type.
func (c *CLIInterface) collect(fs *pflag.FlagSet, values map[string]any) (Args, error) {
	args := fs.Args()
	input := make(Args)

	if len(args) < len(c.positional) {
		missing := c.positional[len(args):]
		return nil, fmt.Errorf("%s: missing arguments: %s", c.name, strings.Join(missing, ", "))
	}
	for i, name := range c.positional {
		input[name] = args[i]
	}
	rest := args[len(c.positional):]
	if c.fn.Variadic != "" {
		input[c.fn.Variadic] = slices.Clone(rest)
	} else if len(rest) > 0 {
		return nil, fmt.Errorf("%s: unexpected arguments: %s", c.name, strings.Join(rest, " "))
	}

	for _, name := range c.options {
		if !fs.Changed(name) {
			continue
		}
		switch v := values[name].(type) {
		case *bool:
			input[name] = *v
		case *[]string:
			input[name] = slices.Clone(*v)
		case *string:
			input[name] = *v
		}
	}

	for name, b := range c.behavior {
		if len(b.Choices) == 0 {
			continue
		}
		if err := checkChoice(name, input[name], b.Choices); err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return input, nil
}

func checkChoice(name string, value any, choices []string) error {
	var given []string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		given = []string{v}
	case []string:
		given = v
	default:
		return nil
	}
	for _, g := range given {
		if !slices.Contains(choices, g) {
			return fmt.Errorf("argument %s: invalid choice: %q (choose from %s)", name, g, strings.Join(choices, ", "))
		}
	}
	return nil
}

// write formats data and writes it, newline terminated.
func (c *CLIInterface) write(call *Call, w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	payload, err := c.outputs.Format(call, data)
	if err != nil {
		return err
	}

	var out []byte
	switch v := payload.(type) {
	case []byte:
		out = v
	case string:
		out = []byte(v)
	case io.Reader:
		if closer, ok := v.(io.Closer); ok {
			defer closer.Close() //nolint:errcheck // read-only source
		}
		_, err := io.Copy(w, v)
		return err
	}
	if len(out) == 0 {
		return nil
	}
	if out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	_, err = w.Write(out)
	return err
}
