package acl

import (
	"reflect"
	"testing"
)

func TestHasAnyColumnPrivilege(t *testing.T) {
	p := NewUserPrivilege()
	p.GrantColumn(Select, "public.t", "a")
	p.Finalize()
	if !p.HasAnyColumnPrivilege("public.t") {
		t.Fatal("expected column privilege on public.t")
	}
	if p.HasAnyColumnPrivilege("public.other") {
		t.Fatal("did not expect column privilege on public.other")
	}
}

func TestTableAndColumnPrivilegeLists(t *testing.T) {
	p := NewUserPrivilege()
	p.GrantTable(Select, "public.t")
	p.GrantTable(Insert, "public.t")
	p.GrantColumn(Update, "public.u", "a")
	p.Finalize()

	if got := p.TablePrivileges("public.t"); !reflect.DeepEqual(got, []Privilege{Select, Insert}) {
		t.Fatalf("got %v", got)
	}
	if got := p.ColumnPrivileges("public.u", "a"); !reflect.DeepEqual(got, []Privilege{Update}) {
		t.Fatalf("got %v", got)
	}
	if got := p.ColumnPrivileges("public.u", "b"); len(got) != 0 {
		t.Fatalf("expected no privileges on uncovered column, got %v", got)
	}
}

func TestUserPrivilegeShadowing(t *testing.T) {
	p := NewUserPrivilege()
	p.GrantTable(Select, "public.t")
	p.GrantColumn(Select, "public.t", "a") // shadowed, dropped on ingestion
	p.Finalize()

	if !p.HasTable(Select, "public.t") {
		t.Fatal("expected table-wide SELECT grant")
	}
	if !p.HasColumn(Select, "public.t", "anything") {
		t.Fatal("table grant should cover every column")
	}

	// Column grant ingested before the table grant must also be shadowed.
	p2 := NewUserPrivilege()
	p2.GrantColumn(Select, "public.t", "a")
	p2.GrantTable(Select, "public.t")
	p2.Finalize()
	if !p2.HasColumn(Select, "public.t", "b") {
		t.Fatal("table grant added after column grant should still cover every column")
	}
}

func TestUserPrivilegeColumnOnly(t *testing.T) {
	p := NewUserPrivilege()
	p.GrantColumn(Select, "public.t", "a")
	p.Finalize()

	if p.HasTable(Select, "public.t") {
		t.Fatal("column-only grant must not imply table-wide access")
	}
	if !p.HasColumn(Select, "public.t", "a") {
		t.Fatal("expected column grant on a")
	}
	if p.HasColumn(Select, "public.t", "b") {
		t.Fatal("column grant on a must not cover b")
	}
}

func TestObjectACLWhitelistPrecedence(t *testing.T) {
	a := NewObjectACL()
	a.AllowList(ObjectTable, []string{"t"})
	a.DenyList(ObjectTable, []string{"t"})

	d := a.AllowsObject(ObjectTable, "t")
	if !d.Allowed {
		t.Fatal("whitelist must win over blacklist for the same object")
	}
}

func TestObjectACLColumnGranularWhitelist(t *testing.T) {
	a := NewObjectACL()
	a.AllowColumns(ObjectTable, "t", []string{"a"})

	if !a.AllowsColumn(ObjectTable, "t", "a") {
		t.Fatal("column a should be allowed")
	}
	if a.AllowsColumn(ObjectTable, "t", "b") {
		t.Fatal("column b should be denied under a non-empty whitelist")
	}
	d := a.AllowsObject(ObjectTable, "t")
	if !d.Allowed || !d.Partial {
		t.Fatalf("expected partial access for t, got %+v", d)
	}
}

func TestObjectACLViewMergesIntoTable(t *testing.T) {
	a := NewObjectACL()
	a.AllowList(ObjectView, []string{"v1"})

	d := a.AllowsObject(ObjectTable, "v1")
	if !d.Allowed {
		t.Fatal("VIEW whitelist entries must be reachable under TABLE lookups")
	}
}

func TestObjectACLNoFilterWhenEmpty(t *testing.T) {
	a := NewObjectACL()
	d := a.AllowsObject(ObjectTable, "anything")
	if !d.Allowed {
		t.Fatal("empty ACL must not filter anything")
	}
}

func TestToolACLPrecedence(t *testing.T) {
	acl := NewToolACL()
	acl.Allow([]Privilege{Select})
	acl.Deny([]Privilege{Select, Insert})

	if !acl.Permits(Select) {
		t.Fatal("whitelist must win: SELECT allowed")
	}
	if acl.Permits(Insert) {
		t.Fatal("INSERT not in whitelist, whitelist non-empty => denied")
	}
}

func TestToolACLBlacklistOnly(t *testing.T) {
	acl := NewToolACL()
	acl.Deny([]Privilege{Delete})

	if acl.Permits(Delete) {
		t.Fatal("DELETE should be denied by blacklist")
	}
	if !acl.Permits(Select) {
		t.Fatal("SELECT not blacklisted, should be permitted")
	}
}

func TestParseToolACL(t *testing.T) {
	got, err := ParseToolACL("[SELECT, insert, bogus]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != Select || got[1] != Insert {
		t.Fatalf("unexpected parse result: %v", got)
	}
}

func TestParseObjectACLJSONListForm(t *testing.T) {
	acl, err := LoadObjectACL(`{"TABLE": ["t1", "t2"]}`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acl.AllowsObject(ObjectTable, "t1").Allowed {
		t.Fatal("t1 should be allowed")
	}
	if acl.AllowsObject(ObjectTable, "t3").Allowed {
		t.Fatal("t3 not in whitelist, should be denied")
	}
}

func TestParseObjectACLDictForm(t *testing.T) {
	acl, err := LoadObjectACL(`{"TABLE": {"t1": {"COLUMN": ["a", "b"]}}}`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acl.AllowsColumn(ObjectTable, "t1", "a") {
		t.Fatal("column a should be allowed")
	}
	if acl.AllowsColumn(ObjectTable, "t1", "c") {
		t.Fatal("column c should be denied")
	}
}

func TestParseObjectACLInvalidType(t *testing.T) {
	_, err := LoadObjectACL(`{"BOGUS": ["x"]}`, "")
	if err == nil {
		t.Fatal("expected ACLParseError for unsupported object type")
	}
}

func TestParseObjectACLInvalidJSON(t *testing.T) {
	_, err := LoadObjectACL(`{not json`, "")
	if err == nil {
		t.Fatal("expected ACLParseError for malformed JSON")
	}
}
