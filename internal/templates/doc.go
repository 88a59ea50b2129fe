// Package templates provides starter project files for tsbuild init.
//
// There is one template per build preset. Each lays out the directories
// the preset expects, so a fresh project builds without changes.
//
// # Usage
//
//	tmpl, err := templates.Get("workers")
//	written, err := tmpl.Create(projectDir, templates.Config{ProjectName: "atlas"})
//
// # Template Variables
//
//	{{.ProjectName}}     - Name of the project, used as the page title
//	{{.Output}}          - Output directory, for .gitignore
package templates
