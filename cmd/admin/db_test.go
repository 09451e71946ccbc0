package main

import "testing"

func TestFilters(t *testing.T) {
	where, params := filters(map[string]string{"player": "p1", "arena_id": "a", "mode": ""})
	if where != " WHERE arena_id=? AND player=?" {
		t.Fatalf("where = %q", where)
	}
	if len(params) != 2 || params[0] != "a" || params[1] != "p1" {
		t.Fatalf("params = %v", params)
	}
	if where, params := filters(map[string]string{}); where != "" || params != nil {
		t.Fatalf("empty filters = %q %v", where, params)
	}
}
