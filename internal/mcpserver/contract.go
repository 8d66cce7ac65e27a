package mcpserver

// NoteGuide describes how quire stores, searches and highlights notes, for
// LLM clients that create or edit notes.
const NoteGuide = `# Quire Note Guide

A note is a flat record. There are no folders, tags or links.

## Fields

| Field      | Meaning                                                        |
|------------|----------------------------------------------------------------|
| ` + "`id`" + `       | Opaque unique identifier. Never reuse or invent one.           |
| ` + "`title`" + `    | Free text. An empty title is shown as "Untitled".              |
| ` + "`content`" + `  | Plain UTF-8 text, usually lightweight Markdown.                |
| ` + "`date`" + `     | Creation time. Imported notes carry the import time.           |
| ` + "`isPinned`" + ` | Pinned notes are listed before all others.                     |

New notes are placed at the top of the list. Listings show pinned notes
first, then the newest.

## Search and replace

- Matching is literal and case-insensitive. No regular expressions.
- Matches never overlap and are reported as byte offsets ` + "`[start, end)`" + `.
- An empty query matches nothing.
- replace_in_note replaces the first match unless ` + "`all`" + ` is true.

## Highlighting

The editor styles content with these rules, in order. Where two rules
overlap, the later one wins.

1. ` + "`**bold**`" + `
2. ` + "`*italic*`" + `
3. Lines starting with 1 to 6 ` + "`#`" + ` and a space are headings.
4. Fenced code blocks between triple backticks.
5. Inline code between single backticks.

Headings are whole lines, so an inline code span inside a heading is still
drawn as code.

## Export and import

- export_notes writes ` + "`<title>_<unix-time>.md`" + ` for one note, or a
  ` + "`NotesArchive.zip`" + ` of every note. Characters ` + "`/ \\ ? % * | \" < > :`" + ` are
  removed from file names and spaces become underscores. Repeated titles in
  an archive get ` + "`_2`, `_3`" + ` suffixes.
- import_note accepts UTF-8 text only. The note title is the file name
  without its extension and the content is kept verbatim.
`
