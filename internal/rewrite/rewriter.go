package rewrite

import "strings"

// Replacement records one rewritten URL occurrence.
type Replacement struct {
	Class     Class
	Original  string
	Rewritten string
}

// Result is the outcome of Rewrite.
type Result struct {
	Text         string
	Changed      bool
	Replacements []Replacement
}

// Rewrite replaces every social URL with its mirror form and every paywalled
// URL with an archive link. Each occurrence is rewritten in its own span, so a
// URL repeated in the text is handled once per occurrence and an inserted
// archive link is never wrapped a second time.
func (r *Rewriter) Rewrite(text string) Result {
	locs := urlPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return Result{Text: text}
	}

	var (
		b      strings.Builder
		social []Replacement
		paid   []Replacement
		last   int
	)
	b.Grow(len(text))

	for _, loc := range locs {
		raw := text[loc[0]:loc[1]]

		var rep Replacement
		switch r.Classify(raw) {
		case SocialMirror:
			rep = Replacement{Class: SocialMirror, Original: raw, Rewritten: r.mirrorURL(raw)}
			social = append(social, rep)
		case Paywall:
			rep = Replacement{Class: Paywall, Original: raw, Rewritten: r.archiveURL(raw)}
			paid = append(paid, rep)
		default:
			continue
		}

		b.WriteString(text[last:loc[0]])
		b.WriteString(rep.Rewritten)
		last = loc[1]
	}

	if len(social)+len(paid) == 0 {
		return Result{Text: text}
	}
	b.WriteString(text[last:])

	return Result{
		Text:         b.String(),
		Changed:      true,
		Replacements: append(social, paid...),
	}
}
