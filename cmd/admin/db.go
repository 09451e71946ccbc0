package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd runs read-only queries straight against the record store.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	arenaID := fs.String("arena", "", "arena id filter (records, completions)")
	mode := fs.String("mode", "", "game mode filter (records, completions)")
	player := fs.String("player", "", "player uuid filter (records, completions)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "counts"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = defaultDBPath(*dataDir)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "counts":
		out := map[string]int{}
		for _, table := range []string{"records", "completions", "groups", "group_arenas"} {
			var n int
			if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
				fmt.Fprintln(os.Stderr, "query:", err)
				os.Exit(1)
			}
			out[table] = n
		}
		printJSON(out)

	case "records":
		where, params := filters(map[string]string{"arena_id": *arenaID, "mode": strings.ToUpper(*mode), "player": *player})
		rows, err := db.Query(`SELECT arena_id,mode,kind,player,value,updated_at FROM records`+where+` ORDER BY arena_id,mode,kind,value,rowid LIMIT ?`, append(params, *limit)...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ArenaID   string `json:"arena_id"`
				Mode      string `json:"mode"`
				Kind      string `json:"kind"`
				Player    string `json:"player"`
				Value     int64  `json:"value"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.ArenaID, &r.Mode, &r.Kind, &r.Player, &r.Value, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}

	case "completions":
		where, params := filters(map[string]string{"arena_id": *arenaID, "mode": strings.ToUpper(*mode), "player": *player})
		rows, err := db.Query(`SELECT arena_id,mode,player,completed_at FROM completions`+where+` ORDER BY completed_at DESC LIMIT ?`, append(params, *limit)...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ArenaID     string `json:"arena_id"`
				Mode        string `json:"mode"`
				Player      string `json:"player"`
				CompletedAt string `json:"completed_at"`
			}
			if err := rows.Scan(&r.ArenaID, &r.Mode, &r.Player, &r.CompletedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}

	case "groups":
		rows, err := db.Query(`SELECT g.id, g.name, COALESCE(group_concat(ga.arena_id, ','), '') FROM groups g
			LEFT JOIN (SELECT * FROM group_arenas ORDER BY group_id, pos) ga ON ga.group_id = g.id
			GROUP BY g.id ORDER BY g.name LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					ID     string   `json:"id"`
					Name   string   `json:"name"`
					Arenas []string `json:"arenas"`
				}
				members string
			)
			if err := rows.Scan(&r.ID, &r.Name, &members); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			if members != "" {
				r.Arenas = strings.Split(members, ",")
			}
			printJSON(r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown db query:", q, "(want counts|records|completions|groups)")
		os.Exit(2)
	}
}

// filters builds a WHERE clause from the non-empty column values, in a stable
// column order.
func filters(cols map[string]string) (string, []any) {
	var (
		conds  []string
		params []any
	)
	for _, col := range []string{"arena_id", "mode", "player"} {
		if v := strings.TrimSpace(cols[col]); v != "" {
			conds = append(conds, col+"=?")
			params = append(params, v)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
