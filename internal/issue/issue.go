// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	ConfigLoadFailedId Id = iota + 1
	DataDirNotFoundId
	MachineNotFoundId
	ExtruderNotFoundId
	ResourcesNotFoundId
	AppImageMountFailedId
	DuplicateProfileId
	ProfileParseFailedId
	EngineFailedId
	CommandLineParseFailedId
	SettingsFileInvalidId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the issue as terminal-styled Markdown. An empty stylePath
// selects glamour's default style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	curaProfilesDoc HttpLink = "https://support.ultimaker.com/s/article/1667411002588"
	curaEngineRepo  HttpLink = "https://github.com/Ultimaker/CuraEngine"
	cueDocs         HttpLink = "https://cuelang.org/docs/"

	issues = map[Id]*Issue{
		ConfigLoadFailedId: {
			id:       ConfigLoadFailedId,
			docLinks: []HttpLink{cueDocs},
			mdMsg: `
# Failed to load the configuration!

The config file is not valid CUE or does not match the schema.

## Things you can try:
- Print a valid configuration and compare:
~~~
$ plater config dump
~~~
- Check ` + "`PLATER_*`" + ` environment variables for typos or blank values
- Point at another file with ` + "`--config`",
		},
		DataDirNotFoundId: {
			id:       DataDirNotFoundId,
			docLinks: []HttpLink{curaProfilesDoc},
			mdMsg: `
# No Cura profiles found!

The user data directory holds no ` + "`*.cfg`" + ` profiles.

## Things you can try:
- Start Cura once and add a printer so it writes its profiles
- Set the directory explicitly:
~~~
$ plater --data-dir ~/.local/share/cura/5.7 profiles list
~~~`,
		},
		MachineNotFoundId: {
			id:       MachineNotFoundId,
			docLinks: []HttpLink{curaProfilesDoc},
			mdMsg: `
# Machine not found!

No machine profile carries that name.

## Things you can try:
- List the machines plater can see:
~~~
$ plater profiles list --type machine
~~~
- Names are case sensitive and may contain spaces; quote them`,
		},
		ExtruderNotFoundId: {
			id:       ExtruderNotFoundId,
			docLinks: []HttpLink{curaProfilesDoc},
			mdMsg: `
# Extruder not found!

No extruder profile carries that name.

## Things you can try:
- List the extruders plater can see:
~~~
$ plater profiles list --type extruder_train
~~~
- Extruder names usually differ from the machine name`,
		},
		ResourcesNotFoundId: {
			id:       ResourcesNotFoundId,
			docLinks: []HttpLink{curaEngineRepo},
			mdMsg: `
# Installed Cura resources not found!

Definitions and installed profiles live in Cura's resource tree, which
could not be located.

## Things you can try:
- Set ` + "`slicer.resources_dir`" + ` to the ` + "`share/cura/resources`" + ` directory
- For AppImage installs set ` + "`slicer.binary`" + ` and ` + "`slicer.appimage: true`",
		},
		AppImageMountFailedId: {
			id:       AppImageMountFailedId,
			docLinks: []HttpLink{curaEngineRepo},
			extLinks: []HttpLink{"https://docs.appimage.org/user-guide/troubleshooting/fuse.html"},
			mdMsg: `
# Failed to mount the AppImage!

plater runs the AppImage with ` + "`--appimage-mount`" + ` to read its resources.

## Things you can try:
- Check that the file is executable
- Install FUSE, which AppImages need to mount themselves
- Extract the AppImage and use ` + "`slicer.resources_dir`" + ` instead`,
		},
		DuplicateProfileId: {
			id:       DuplicateProfileId,
			docLinks: []HttpLink{curaProfilesDoc},
			mdMsg: `
# Two profiles share one id!

Profile ids come from file names, so two files with the same stem in
different directories conflict.

## Things you can try:
- Remove or rename one of the files named in the error
- Look for leftover backups inside the data directory`,
		},
		ProfileParseFailedId: {
			id:       ProfileParseFailedId,
			docLinks: []HttpLink{curaProfilesDoc},
			mdMsg: `
# A profile could not be read!

The file is not a valid Cura profile.

## Things you can try:
- Open it and check the ` + "`[general]`" + `, ` + "`[metadata]`" + ` and ` + "`[values]`" + ` sections
- Re-export the profile from Cura`,
		},
		EngineFailedId: {
			id:       EngineFailedId,
			docLinks: []HttpLink{curaEngineRepo},
			mdMsg: `
# The slicing engine failed!

The engine exited with an error. Its full output is in the invoke log.

## Things you can try:
- Preview the command without running it:
~~~
$ plater slice --dry-run ...
~~~
- Extract the settings the engine saw and compare them with Cura's:
~~~
$ plater parse-cli invoke.log settings.txt
$ plater diff settings.txt cura-settings.txt
~~~`,
		},
		CommandLineParseFailedId: {
			id:       CommandLineParseFailedId,
			docLinks: []HttpLink{curaEngineRepo},
			mdMsg: `
# Failed to parse the engine command line!

Only settings, scope flags, load, output and definition flags are understood.

## Things you can try:
- Check for an unterminated quote in a multi-line setting
- Make sure the log comes from a CuraEngine ` + "`slice`" + ` run`,
		},
		SettingsFileInvalidId: {
			id:       SettingsFileInvalidId,
			docLinks: []HttpLink{curaEngineRepo},
			mdMsg: `
# Invalid settings file!

Settings files hold one ` + "`key=\"value\"`" + ` pair per line. Lines starting
with ` + "`#`" + ` and blank lines are ignored.

## Example
~~~
layer_height="0.2"
#disabled: time="12:00"
~~~`,
		},
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
