package templates

import "testing"

func TestDefaultCatalogDefinesPipelineEvents(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	for _, event := range []string{"interest_expressed", "offer_made", "weekly_opportunities", "system_test"} {
		tpl, ok := c.Lookup(event)
		if !ok {
			t.Fatalf("missing event %s", event)
		}
		if tpl.EventName != event || tpl.Subject == "" {
			t.Fatalf("incomplete template for %s: %+v", event, tpl)
		}
		if _, ok := c.Body(tpl.TemplateName); !ok {
			t.Fatalf("missing local body for %s", tpl.TemplateName)
		}
	}
}

func TestParseCatalogRequiresTemplateName(t *testing.T) {
	if _, err := ParseCatalog([]byte("events:\n  broken:\n    subject: x\n")); err == nil {
		t.Fatalf("expected error for event without template")
	}
}

func TestEventsAreSorted(t *testing.T) {
	c, err := ParseCatalog([]byte("events:\n  b:\n    template: tb\n  a:\n    template: ta\n"))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if got := c.Events(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected order %v", got)
	}
}
