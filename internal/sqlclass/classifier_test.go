package sqlclass

import (
	"testing"

	"github.com/marcus-qen/dbgateway/internal/acl"
)

func TestClassifySelectSimple(t *testing.T) {
	c, err := Classify("SELECT a FROM t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Op != acl.Select {
		t.Fatalf("expected SELECT, got %s", c.Op)
	}
	if !c.Tables["t"] {
		t.Fatalf("expected table t, got %+v", c.Tables)
	}
	if !c.Columns["t.a"] {
		t.Fatalf("expected column t.a, got %+v", c.Columns)
	}
}

func TestClassifySelectWithAlias(t *testing.T) {
	c, err := Classify("SELECT x.a FROM t AS x WHERE x.b = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AliasMap["x"] != "t" {
		t.Fatalf("expected alias x -> t, got %+v", c.AliasMap)
	}
	if !c.Columns["t.a"] || !c.Columns["t.b"] {
		t.Fatalf("expected t.a and t.b resolved via alias, got %+v", c.Columns)
	}
}

func TestClassifyInsert(t *testing.T) {
	c, err := Classify("INSERT INTO t (a, b) VALUES (1, 2)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Op != acl.Insert {
		t.Fatalf("expected INSERT, got %s", c.Op)
	}
	if !c.Required[acl.Insert][acl.ObjectColumn]["t.a"] || !c.Required[acl.Insert][acl.ObjectColumn]["t.b"] {
		t.Fatalf("expected INSERT required on t.a, t.b, got %+v", c.Required)
	}
}

func TestClassifyInsertSelect(t *testing.T) {
	c, err := Classify("INSERT INTO t (a) SELECT x FROM src")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Required[acl.Insert][acl.ObjectColumn]["t.a"] {
		t.Fatal("expected INSERT on t.a")
	}
	if !c.Required[acl.Select][acl.ObjectColumn]["src.x"] {
		t.Fatalf("expected SELECT on src.x from sub-select, got %+v", c.Required)
	}
}

func TestClassifyUpdate(t *testing.T) {
	c, err := Classify("UPDATE t SET a = 1 WHERE b = 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Op != acl.Update {
		t.Fatalf("expected UPDATE, got %s", c.Op)
	}
	if !c.Required[acl.Update][acl.ObjectColumn]["t.a"] {
		t.Fatal("expected UPDATE on t.a")
	}
	if !c.Required[acl.Select][acl.ObjectColumn]["t.b"] {
		t.Fatal("expected SELECT on t.b (WHERE clause)")
	}
}

func TestClassifyDelete(t *testing.T) {
	c, err := Classify("DELETE FROM t WHERE a = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Op != acl.Delete {
		t.Fatalf("expected DELETE, got %s", c.Op)
	}
	if !c.Required[acl.Delete][acl.ObjectTable]["t"] {
		t.Fatal("expected DELETE on t")
	}
	if !c.Required[acl.Select][acl.ObjectColumn]["t.a"] {
		t.Fatal("expected SELECT on t.a (WHERE clause)")
	}
}

func TestClassifySelectNoColumnsStillRequiresTablePrivilege(t *testing.T) {
	for _, sql := range []string{"SELECT count(*) FROM t", "SELECT 1 FROM t"} {
		c, err := Classify(sql)
		if err != nil {
			t.Fatalf("classify(%q): unexpected error: %v", sql, err)
		}
		if !c.Required[acl.Select][acl.ObjectTable]["t"] {
			t.Fatalf("classify(%q): expected a table-wide SELECT requirement on t, got %+v", sql, c.Required)
		}
	}
}

func TestClassifySelectWithColumnsDoesNotAlsoRequireWholeTable(t *testing.T) {
	c, err := Classify("SELECT a FROM t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Required[acl.Select][acl.ObjectTable]["t"] {
		t.Fatal("expected column-level requirement to stand in for the table-wide one once t.a resolved")
	}
	if !c.Required[acl.Select][acl.ObjectColumn]["t.a"] {
		t.Fatal("expected column-level SELECT requirement on t.a")
	}
}

func TestClassifyUnqualifiedAmbiguousColumn(t *testing.T) {
	c, err := Classify("SELECT a FROM t1, t2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.UnqualifiedColumns["a"] {
		t.Fatalf("expected ambiguous column a to be recorded unqualified, got %+v", c.Columns)
	}
}

func TestClassifyUnsupportedStatement(t *testing.T) {
	_, err := Classify("CREATE TABLE t (a int)")
	if err == nil {
		t.Fatal("expected ParseError for unsupported statement kind")
	}
}

func TestClassifyUnparseable(t *testing.T) {
	_, err := Classify("SELEKT nonsense")
	if err == nil {
		t.Fatal("expected ParseError for unparseable SQL")
	}
}
