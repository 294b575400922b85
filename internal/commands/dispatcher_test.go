package commands

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/paywallbot/internal/sites"
	"github.com/nextlevelbuilder/paywallbot/internal/store"
)

type memStore struct {
	data    store.Overrides
	saveErr error
}

func (m *memStore) Load(context.Context) (store.Overrides, error) { return m.data.Clone(), nil }

func (m *memStore) Save(_ context.Context, o store.Overrides) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = o.Clone()
	return nil
}

func newDispatcher(st *memStore) (*Dispatcher, *sites.Registry) {
	reg := sites.New(context.Background(), st, sites.Options{Builtin: []string{"nytimes.com", "wsj.com"}})
	return New(reg), reg
}

func TestDispatch_AddSiteNormalizes(t *testing.T) {
	ctx := context.Background()
	d, reg := newDispatcher(&memStore{})

	reply, handled := d.Dispatch(ctx, "!addsite www.Example.COM")
	if !handled {
		t.Fatal("!addsite not handled")
	}
	if !reply.OK || !reply.Announce {
		t.Errorf("reply = %+v, want OK and Announce", reply)
	}
	if reply.Text != "Added example.com to the paywall list." {
		t.Errorf("Text = %q", reply.Text)
	}
	if !slices.Contains(reg.List(), "example.com") {
		t.Errorf("registry missing example.com: %v", reg.List())
	}

	list, handled := d.Dispatch(ctx, "!listsites")
	if !handled {
		t.Fatal("!listsites not handled")
	}
	want := "Current paywall sites:\n- example.com\n- nytimes.com\n- wsj.com"
	if list.Text != want {
		t.Errorf("list Text = %q, want %q", list.Text, want)
	}
	if list.Announce {
		t.Error("!listsites must be private")
	}
}

func TestDispatch_AddSiteFromURL(t *testing.T) {
	d, reg := newDispatcher(&memStore{})
	reply, _ := d.Dispatch(context.Background(), "!addsite https://www.Theinformation.com/articles/x")
	if reply.Domain != "theinformation.com" || !reply.OK {
		t.Errorf("reply = %+v", reply)
	}
	if !slices.Contains(reg.List(), "theinformation.com") {
		t.Error("domain not added")
	}
}

func TestDispatch_ReplyNamesStoredDomain(t *testing.T) {
	ctx := context.Background()
	for _, arg := range []string{"WWW.//http://x", "WWW.www.Example.org", "www.https://www.ft.com/a"} {
		t.Run(arg, func(t *testing.T) {
			st := &memStore{}
			d, reg := newDispatcher(st)

			reply, _ := d.Dispatch(ctx, AddSite+" "+arg)
			if !reply.OK {
				t.Fatalf("reply = %+v, want OK", reply)
			}
			if !slices.Equal(st.data.Added, []string{reply.Domain}) {
				t.Errorf("persisted added = %v, reply domain %q", st.data.Added, reply.Domain)
			}
			if !slices.Contains(reg.List(), reply.Domain) {
				t.Errorf("list %v missing reply domain %q", reg.List(), reply.Domain)
			}
			if !strings.Contains(reply.Text, " "+reply.Domain+" ") {
				t.Errorf("Text %q does not name %q", reply.Text, reply.Domain)
			}

			removed, _ := d.Dispatch(ctx, RemoveSite+" "+arg)
			if !removed.OK || removed.Domain != reply.Domain {
				t.Errorf("remove reply = %+v, want OK for %q", removed, reply.Domain)
			}
		})
	}
}

func TestDispatch_Messages(t *testing.T) {
	tests := []struct {
		name     string
		seed     store.Overrides
		text     string
		wantOK   bool
		wantText string
	}{
		{"already listed", store.Overrides{}, "!addsite nytimes.com", false, "Domain nytimes.com is already in the paywall list."},
		{"re-enable builtin", store.Overrides{Removed: []string{"wsj.com"}}, "!addsite wsj.com", true, "Re-enabled built-in domain wsj.com."},
		{"remove builtin", store.Overrides{}, "!removesite WSJ.com", true, "Removed wsj.com from the paywall list."},
		{"remove missing", store.Overrides{}, "!removesite example.org", false, "Domain example.org is not in the paywall list."},
		{"extra args ignored", store.Overrides{}, "!addsite a.com b.com", true, "Added a.com to the paywall list."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDispatcher(&memStore{data: tt.seed})
			reply, handled := d.Dispatch(context.Background(), tt.text)
			if !handled {
				t.Fatal("not handled")
			}
			if reply.OK != tt.wantOK || reply.Text != tt.wantText {
				t.Errorf("reply = %+v, want OK=%v Text=%q", reply, tt.wantOK, tt.wantText)
			}
			if !reply.Announce {
				t.Error("add/remove results must be announced")
			}
		})
	}
}

func TestDispatch_PersistFailure(t *testing.T) {
	ctx := context.Background()
	diskErr := errors.New("read-only file system")

	tests := []struct {
		name     string
		seed     store.Overrides
		text     string
		wantText string
	}{
		{"add", store.Overrides{}, "!addsite example.com", "Failed to save example.com to the paywall list."},
		{"re-enable", store.Overrides{Removed: []string{"wsj.com"}}, "!addsite wsj.com", "Failed to save changes for wsj.com."},
		{"remove", store.Overrides{}, "!removesite nytimes.com", "Failed to remove nytimes.com from the paywall list."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &memStore{data: tt.seed}
			d, reg := newDispatcher(st)
			before := reg.List()
			st.saveErr = diskErr

			reply, _ := d.Dispatch(ctx, tt.text)
			if reply.OK || reply.Text != tt.wantText {
				t.Errorf("reply = %+v, want failure %q", reply, tt.wantText)
			}
			if !slices.Equal(reg.List(), before) {
				t.Errorf("list changed after failed command: %v -> %v", before, reg.List())
			}
		})
	}
}

func TestDispatch_MissingArgument(t *testing.T) {
	for _, text := range []string{"!addsite", "!removesite   ", "!addsite www."} {
		d, reg := newDispatcher(&memStore{})
		before := reg.List()

		reply, handled := d.Dispatch(context.Background(), text)
		if !handled {
			t.Fatalf("%q not handled", text)
		}
		if reply.OK || reply.Announce {
			t.Errorf("%q: reply = %+v, want private failure", text, reply)
		}
		if !strings.HasPrefix(reply.Text, "Usage: ") {
			t.Errorf("%q: Text = %q, want usage hint", text, reply.Text)
		}
		if !slices.Equal(reg.List(), before) {
			t.Errorf("%q mutated the registry", text)
		}
	}
}

func TestDispatch_NotACommand(t *testing.T) {
	d, _ := newDispatcher(&memStore{})
	for _, text := range []string{
		"",
		"hello",
		"!listsites please",
		"!addsites example.com",
		"!AddSite example.com",
		"check https://nytimes.com !addsite",
	} {
		if _, handled := d.Dispatch(context.Background(), text); handled {
			t.Errorf("%q handled as command", text)
		}
	}
}

func TestDispatch_ListTrimmed(t *testing.T) {
	d, _ := newDispatcher(&memStore{})
	if _, handled := d.Dispatch(context.Background(), "  !listsites \n"); !handled {
		t.Error("trimmed !listsites not handled")
	}
}

func TestDispatch_EmptyList(t *testing.T) {
	st := &memStore{data: store.Overrides{Removed: []string{"nytimes.com", "wsj.com"}}}
	d, _ := newDispatcher(st)
	reply, _ := d.Dispatch(context.Background(), "!listsites")
	if reply.Text != "The paywall list is empty." {
		t.Errorf("Text = %q", reply.Text)
	}
}
