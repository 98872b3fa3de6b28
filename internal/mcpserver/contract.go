package mcpserver

// NoteFormatContract describes the Markdown note format that LLM consumers
// should follow when writing notes.
const NoteFormatContract = `# notegraph Note Format

Notes are UTF-8 Markdown files with the ` + "`" + `.md` + "`" + ` extension.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # optional, used as the note title
tags: [tag-one, tag-two]            # optional, inline list or "- item" lines
---

# Heading

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (file name without .md).
Use [[folder/note]] when two notes share a name.
Use [[target|alias]] for display text and [[target#heading]] for a section.
` + "```" + `

## Rules

1. **Frontmatter** is optional. When present the ` + "`" + `---` + "`" + ` fence must be the
   first line of the file and the block must be closed by another ` + "`" + `---` + "`" + ` line.
2. **Title** comes from the ` + "`" + `title` + "`" + ` key, otherwise the first level-1 heading.
3. **Tags** are matched case-insensitively and stored lowercase; a leading ` + "`" + `#` + "`" + ` is dropped.
4. **Wikilinks** resolve by file name, path or path suffix, ignoring case. A link
   to a missing note renders as a broken link, it is not an error.
5. **Names** of files and folders must not contain ` + "`" + `\ / : * ? " < > |` + "`" + ` or control
   characters, must not be a reserved device name (CON, PRN, AUX, NUL, COM1-9,
   LPT1-9) and must not end with a dot or a space. Check with ` + "`" + `validate_name` + "`" + `.
6. **Paths** use forward slashes and are relative to the vault root. A path
   without an extension gets ` + "`" + `.md` + "`" + ` appended.
7. **Code**: wikilinks inside inline code and fenced code blocks are left as text.

## Images

- Upload with the ` + "`" + `upload_image` + "`" + ` tool (http(s) URL or base64 data URI). It returns a
  ` + "`" + `markdown` + "`" + ` field ready to paste into the note body.
- Images live in the ` + "`" + `_attachments/` + "`" + ` folder next to the note and are referenced
  relatively: ` + "`" + `![diagram](_attachments/diagram-20250120093000.png)` + "`" + `.
- Supported formats: png, jpg, jpeg, gif, webp; at most 10 MB.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
tags: [meeting-notes, project-x]
---

# Weekly standup 2025-01-20

![Whiteboard](_attachments/whiteboard-20250120100000.jpg)

## Action items

- Review the [[design-doc#api]]
- Update [[project-x/roadmap|the roadmap]]
` + "```" + `
`
