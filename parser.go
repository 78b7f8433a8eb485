package vmopts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Azhovan/vmopts/internal/fuzzy"
	"go.uber.org/zap"
)

// errNotParsed means the argument did not resolve to a settable flag or did
// not match the option grammar. The registry is unchanged.
var errNotParsed = errors.New("argument not parsed")

// Parser applies "-XX:" style flag arguments (without the "-XX:" prefix) to
// a registry.
type Parser struct {
	reg     *Registry
	version Version
	log     *zap.Logger
	matcher *fuzzy.Matcher
}

// NewParser creates a parser that classifies lifecycle against version.
// A nil logger discards warnings.
func NewParser(reg *Registry, version Version, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		reg:     reg,
		version: version,
		log:     logger,
		matcher: fuzzy.NewMatcher(fuzzy.DefaultThreshold),
	}
}

// ParseArgument applies one flag argument such as "+UseG1GC",
// "MaxHeapSize=1g" or "OnError:=cmd". It returns false, leaving the registry
// untouched, when the argument is malformed or names no settable flag.
func (p *Parser) ParseArgument(arg string, origin Origin) bool {
	return p.parse(arg, origin) == nil
}

func (p *Parser) parse(arg string, origin Origin) error {
	sense := 0
	rest := arg
	if rest != "" && (rest[0] == '+' || rest[0] == '-') {
		sense = 1
		if rest[0] == '-' {
			sense = -1
		}
		rest = rest[1:]
	}

	n := nameLen(rest)
	if n == 0 {
		return errNotParsed
	}
	name, tail := rest[:n], rest[n:]

	canonical := p.resolve(name)
	if canonical == "" {
		return errNotParsed
	}
	f := p.reg.Find(canonical)
	if f == nil {
		return errNotParsed
	}

	if sense != 0 {
		if tail != "" || f.typ != TypeBool {
			return errNotParsed
		}
		return f.SetBool(sense > 0, origin)
	}
	if f.typ == TypeBool {
		return errNotParsed
	}

	switch {
	case strings.HasPrefix(tail, ":="):
		if !f.typ.isString() {
			return errNotParsed
		}
		return f.SetString(tail[2:], origin)
	case strings.HasPrefix(tail, "="):
		return setFromText(f, tail[1:], origin)
	default:
		return errNotParsed
	}
}

func setFromText(f *Flag, text string, origin Origin) error {
	if f.typ == TypeStringList {
		if old := f.value.s; old != "" && text != "" {
			text = old + "\n" + text
		} else if text == "" {
			text = old
		}
		return f.SetString(text, origin)
	}
	if f.typ == TypeString {
		return f.SetString(text, origin)
	}

	v, err := ParseValue(f.typ, text)
	if err != nil {
		return errNotParsed
	}
	return f.Set(v, origin)
}

func nameLen(s string) int {
	i := 0
	for i < len(s) {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			break
		}
		i++
	}
	return i
}

// resolve follows aliases and applies lifecycle rules, logging deprecation
// warnings. It returns "" for obsolete and expired names.
func (p *Parser) resolve(name string) string {
	lc := p.reg.Classify(name, p.version)
	switch lc.State {
	case StateObsolete, StateExpired:
		return ""
	case StateDeprecated:
		msg := fmt.Sprintf("Option %s was deprecated in version %s and will likely be removed in a future release.", name, lc.Since)
		if lc.Aliased {
			msg += fmt.Sprintf(" Use option %s instead.", lc.Canonical)
		}
		p.log.Warn(msg, zap.String("option", name), zap.Stringer("since", lc.Since))
	default:
		if lc.Grace {
			p.log.Warn(fmt.Sprintf("Temporarily processing option %s; support is scheduled for removal in %s", name, lc.Since),
				zap.String("option", name), zap.Stringer("since", lc.Since))
		}
	}
	return lc.Canonical
}

// ProcessArgument is ParseArgument with diagnostics. Obsolete flags are
// accepted with a warning, comments ("#...") are skipped, and unknown names
// are accepted silently when ignoreUnrecognized is set.
func (p *Parser) ProcessArgument(arg string, ignoreUnrecognized bool, origin Origin) error {
	if strings.HasPrefix(arg, "#") {
		return nil
	}

	err := p.parse(arg, origin)
	if err == nil {
		return nil
	}

	hasSense := arg != "" && (arg[0] == '+' || arg[0] == '-')
	argname := arg
	if hasSense {
		argname = arg[1:]
	}
	name := argname[:nameLen(argname)]

	lc := p.reg.Classify(name, p.version)
	if lc.State == StateObsolete {
		p.log.Warn(fmt.Sprintf("Ignoring option %s; support was removed in %s", name, lc.Since),
			zap.String("option", name), zap.Stringer("since", lc.Since))
		return nil
	}

	// An expired flag is unrecognized even if its descriptor is still declared.
	if f := p.reg.Lookup(name); f != nil && lc.State != StateExpired {
		var lines []string
		if !p.reg.IsUnlocked(f) {
			unlock := "UnlockDiagnosticVMOptions"
			if f.attr == AttrExperimental {
				unlock = "UnlockExperimentalVMOptions"
			}
			lines = append(lines, fmt.Sprintf("VM option '%s' is %s and must be enabled via -XX:+%s.\nError: The unlock option must precede '%s'.",
				name, f.attr, unlock, name))
			err = ErrLocked
		}
		var rangeErr *RangeError
		if errors.As(err, &rangeErr) {
			lines = append(lines, rangeErr.Error())
		}

		kind := KindInvalidValue
		switch {
		case f.typ == TypeBool && !hasSense:
			kind = KindSyntax
			lines = append(lines, fmt.Sprintf("Missing +/- setting for VM option '%s'", argname))
		case f.typ != TypeBool && hasSense:
			kind = KindSyntax
			lines = append(lines, fmt.Sprintf("Unexpected +/- setting in VM option '%s'", argname))
		default:
			lines = append(lines, fmt.Sprintf("Improperly specified VM option '%s'", argname))
		}

		ae := &ArgumentError{Kind: kind, Option: arg, Message: strings.Join(lines, "\n")}
		if !errors.Is(err, errNotParsed) {
			ae.Err = err
		}
		return ae
	}

	if ignoreUnrecognized {
		return nil
	}

	ae := argError(KindUnrecognized, arg, "Unrecognized VM option '%s'", argname)
	if best := p.matcher.FindBest(name, p.suggestable()); best != "" {
		if p.reg.Lookup(best).typ == TypeBool {
			ae.Suggestion = fmt.Sprintf("Did you mean '(+/-)%s'?", best)
		} else {
			ae.Suggestion = fmt.Sprintf("Did you mean '%s=<value>'?", best)
		}
	}
	return ae
}

// suggestable returns the settable flag names that have not expired.
func (p *Parser) suggestable() []string {
	names := p.reg.Names()
	out := names[:0]
	for _, n := range names {
		if p.reg.Classify(n, p.version).State != StateExpired {
			out = append(out, n)
		}
	}
	return out
}
