// Package commands parses the chat commands that edit the paywall list.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/paywallbot/internal/sites"
)

// Command verbs. Verbs are case-sensitive.
const (
	AddSite    = "!addsite"
	RemoveSite = "!removesite"
	ListSites  = "!listsites"
)

// Registry is the subset of sites.Registry used by the dispatcher.
type Registry interface {
	Add(ctx context.Context, domain string) (sites.Change, error)
	Remove(ctx context.Context, domain string) (sites.Change, error)
	List() []string
	IsBuiltin(domain string) bool
}

// Reply is the user-facing outcome of a command.
type Reply struct {
	Command string
	Domain  string
	OK      bool
	Text    string

	// Announce is set when Text should also be posted to the room so other
	// members see list changes.
	Announce bool
}

// Dispatcher routes command messages to the registry.
type Dispatcher struct {
	registry Registry
}

func New(registry Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch runs the command in text. handled is false when text is not a command.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (reply Reply, handled bool) {
	if strings.TrimSpace(text) == ListSites {
		return d.list(), true
	}

	verb, arg := split(text)
	switch verb {
	case AddSite:
		return d.mutate(ctx, AddSite, arg), true
	case RemoveSite:
		return d.mutate(ctx, RemoveSite, arg), true
	}
	return Reply{}, false
}

func (d *Dispatcher) list() Reply {
	domains := d.registry.List()
	text := "The paywall list is empty."
	if len(domains) > 0 {
		text = "Current paywall sites:\n- " + strings.Join(domains, "\n- ")
	}
	return Reply{Command: ListSites, OK: true, Text: text}
}

func (d *Dispatcher) mutate(ctx context.Context, verb, arg string) Reply {
	domain := sites.Normalize(arg)
	if domain == "" {
		return Reply{Command: verb, Text: fmt.Sprintf("Usage: %s domain.com", verb)}
	}

	reply := Reply{Command: verb, Domain: domain, Announce: true}

	var (
		change sites.Change
		err    error
	)
	if verb == AddSite {
		change, err = d.registry.Add(ctx, domain)
	} else {
		change, err = d.registry.Remove(ctx, domain)
	}

	if err != nil {
		reply.Text = d.failureText(verb, domain, err)
		if errors.Is(err, sites.ErrPersist) {
			slog.Error("failed to persist paywall list", "command", verb, "domain", domain, "error", err)
		}
		return reply
	}

	reply.OK = true
	switch change {
	case sites.ChangeReenabled:
		reply.Text = fmt.Sprintf("Re-enabled built-in domain %s.", domain)
	case sites.ChangeAdded:
		reply.Text = fmt.Sprintf("Added %s to the paywall list.", domain)
	case sites.ChangeRemoved:
		reply.Text = fmt.Sprintf("Removed %s from the paywall list.", domain)
	}
	return reply
}

func (d *Dispatcher) failureText(verb, domain string, err error) string {
	switch {
	case errors.Is(err, sites.ErrAlreadyListed):
		return fmt.Sprintf("Domain %s is already in the paywall list.", domain)
	case errors.Is(err, sites.ErrNotListed):
		return fmt.Sprintf("Domain %s is not in the paywall list.", domain)
	case verb == RemoveSite:
		return fmt.Sprintf("Failed to remove %s from the paywall list.", domain)
	case d.registry.IsBuiltin(domain):
		// Only the re-enable path can fail to persist for a builtin domain.
		return fmt.Sprintf("Failed to save changes for %s.", domain)
	default:
		return fmt.Sprintf("Failed to save %s to the paywall list.", domain)
	}
}

// split returns the leading verb and the first argument token.
func split(text string) (verb, arg string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return fields[0], arg
}
