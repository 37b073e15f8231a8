package mcpserver

// RecordFormat describes the export layout that ingest_folder understands.
const RecordFormat = `# Lookback Record Format

An export folder holds one JSON metadata sidecar per memory plus the media
files that belong to it. Sub-folders are scanned recursively; hidden files
and folders (leading ".") are ignored.

## Metadata sidecar

` + "```" + `json
{
  "Date": "2024-03-01 14:22:05 UTC",
  "Media Type": "Image",
  "Location": "Latitude, Longitude: 40.7128, -74.0060",
  "Location Name": "New York, United States"
}
` + "```" + `

1. **` + "`" + `Date` + "`" + ` is required** as a key. The trailing zone marker (` + "`" + `UTC` + "`" + `) is
   stripped and the rest is read as UTC. Empty or unreadable dates sort last
   and are grouped under "Unknown date".
2. **` + "`" + `Media Type` + "`" + `** is a free label; missing or empty becomes ` + "`" + `Unknown` + "`" + `.
3. **` + "`" + `Location` + "`" + `** is free text. When it matches
   ` + "`" + `Latitude, Longitude: <lat>, <lon>` + "`" + ` the pair is rounded to 2 decimals for
   grouping and shown as ` + "`" + `40.71°N, 74.01°W` + "`" + `.
4. **` + "`" + `Location Name` + "`" + `** (optional) wins over everything else as the place label.
5. A JSON file without a ` + "`" + `Date` + "`" + ` key (for example ` + "`" + `memories_history.json` + "`" + `)
   is not a memory and is skipped.

## Media matching

- Media shares the sidecar's stem: the file name up to the first ".".
  ` + "`" + `trip.json` + "`" + ` pairs with ` + "`" + `trip.jpg` + "`" + `.
- When several variants exist the first extension in this order wins:
  ` + "`" + `.jpg .jpeg .png .gif .webp .heic .mp4 .mov .webm .m4v` + "`" + `.
- A sidecar named ` + "`" + `<base>_main.json` + "`" + ` also owns caption overlays named
  ` + "`" + `<base>_overlay_<N>.<ext>` + "`" + `, attached in ascending N.
- A sidecar without media is still a memory, shown without a picture.
`
