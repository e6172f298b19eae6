package main

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Filenames follow NNN_name.up.sql / NNN_name.down.sql. Lexicographic order
// of well-formed names is execution order.
var migrationNameRe = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.(up|down)\.sql$`)

type migrationFile struct {
	Sequence  int
	Name      string
	Direction string
	Filename  string
}

func parseMigrationFilename(filename string) (migrationFile, error) {
	matches := migrationNameRe.FindStringSubmatch(filename)
	if matches == nil {
		return migrationFile{}, fmt.Errorf("malformed migration filename %q (want NNN_name.up.sql or NNN_name.down.sql)", filename)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return migrationFile{}, fmt.Errorf("migration filename %q: %w", filename, err)
	}

	return migrationFile{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

// loadMigrationSet reads every .sql file in fsys and checks the set as a
// whole: well-formed names, an up and a down for every step, and a contiguous
// sequence starting at 001. A stray .sql file is a packaging mistake and
// fails the load; nothing reaches the database from a broken set.
func loadMigrationSet(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var files []migrationFile

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		file, err := parseMigrationFilename(entry.Name())
		if err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files embedded")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	if err := validateMigrationSet(files); err != nil {
		return nil, err
	}

	return files, nil
}

func validateMigrationSet(files []migrationFile) error {
	type pair struct{ up, down bool }

	steps := make(map[int]*pair)
	names := make(map[int]string)

	for _, file := range files {
		if prev, ok := names[file.Sequence]; ok && prev != file.Name {
			return fmt.Errorf("sequence %03d used by both %q and %q", file.Sequence, prev, file.Name)
		}

		names[file.Sequence] = file.Name

		if steps[file.Sequence] == nil {
			steps[file.Sequence] = &pair{}
		}

		if file.Direction == "up" {
			steps[file.Sequence].up = true
		} else {
			steps[file.Sequence].down = true
		}
	}

	for seq, step := range steps {
		if !step.up {
			return fmt.Errorf("migration %03d_%s has no up file", seq, names[seq])
		}

		if !step.down {
			return fmt.Errorf("migration %03d_%s has no down file", seq, names[seq])
		}
	}

	// The sequence must be 1..N with no gaps, or golang-migrate would apply
	// a partial history without noticing.
	for want := 1; want <= len(steps); want++ {
		if _, ok := steps[want]; !ok {
			return fmt.Errorf("gap in migration sequence: %03d missing", want)
		}
	}

	return nil
}

// maxSequence is the highest schema version this binary can bring a database
// to.
func maxSequence(files []migrationFile) int {
	max := 0

	for _, file := range files {
		if file.Sequence > max {
			max = file.Sequence
		}
	}

	return max
}
