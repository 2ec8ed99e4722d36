package mcpserver

// PathLayout describes how the folders/notes hierarchy maps onto paths. It
// is served as a resource and a tool so agents can read it before writing.
const PathLayout = `# notedav path layout

Paths are slash separated and absolute. ` + "`/`" + ` is the root of your notes.

- A folder appears as a directory named after its title: ` + "`/Documents/Work`" + `.
- A note appears as a file named ` + "`{title}.{syntax}`" + `: the note titled
  "Meeting Notes" with syntax "md" inside Work is ` + "`/Documents/Work/Meeting Notes.md`" + `.
- When a folder and a note would have the same name, the folder wins.

## Writing

- ` + "`write_note`" + ` replaces the content of the note at the path, or creates it.
  The note keeps its identity when overwritten.
- The syntax is taken from the extension after the last dot and lowercased.
  A name without an extension gets syntax "md": writing ` + "`/report`" + ` creates
  ` + "`/report.md`" + `.
- The parent folder must already exist. Folders cannot be created, renamed or
  removed through these tools.
- ` + "`rename_note`" + ` changes a note's file name within its folder only.
- ` + "`delete_note`" + ` removes a note. Folders cannot be deleted.
`
