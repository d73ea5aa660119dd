package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	arg "github.com/alexflint/go-arg"
	"github.com/apkforge/arscwriter"
	yaml "gopkg.in/yaml.v2"
)

type buildCmd struct {
	Input    string `arg:"positional,required" help:"YAML table description"`
	Output   string `arg:"-o,--output" default:"resources.arsc" help:"output file"`
	Sparse   string `arg:"--sparse" default:"disabled" help:"sparse type chunks: disabled, enabled or forced"`
	Compact  bool   `arg:"--compact" help:"use compact entries where possible"`
	Dedup    bool   `arg:"--dedup" help:"deduplicate identical entry values"`
	MinSDK   int    `arg:"--min-sdk" help:"lowest supported API level"`
	Extended bool   `arg:"--extended" help:"emit build tooling chunks"`
	UTF16    bool   `arg:"--utf16" help:"flatten string pools as UTF-16"`
}

type dumpCmd struct {
	Input string `arg:"positional,required" help:"resources.arsc file or APK"`
}

var args struct {
	Build *buildCmd `arg:"subcommand:build" help:"flatten a YAML table description"`
	Dump  *dumpCmd  `arg:"subcommand:dump" help:"print the contents of a resource table"`
}

func main() {
	p := arg.MustParse(&args)

	var err error
	switch {
	case args.Build != nil:
		err = runBuild(args.Build)
	case args.Dump != nil:
		err = runDump(args.Dump)
	default:
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// yamlConfig is the subset of configuration axes the YAML input exposes.
type yamlConfig struct {
	Lang    string `yaml:"lang"`
	Region  string `yaml:"region"`
	Density uint16 `yaml:"density"`
	SDK     uint16 `yaml:"sdk"`
}

func (yc *yamlConfig) toConfig() (arscwriter.Config, error) {
	var c arscwriter.Config
	if yc == nil {
		return c, nil
	}
	if yc.Lang != "" {
		if len(yc.Lang) != 2 {
			return c, fmt.Errorf("language %q must be two letters", yc.Lang)
		}
		c.Language[0], c.Language[1] = yc.Lang[0], yc.Lang[1]
	}
	if yc.Region != "" {
		if len(yc.Region) != 2 {
			return c, fmt.Errorf("region %q must be two letters", yc.Region)
		}
		c.Country[0], c.Country[1] = yc.Region[0], yc.Region[1]
	}
	c.Density = yc.Density
	c.SDKVersion = yc.SDK
	return c, nil
}

type yamlValue struct {
	Config *yamlConfig `yaml:"config"`
	String *string     `yaml:"string"`
	Int    *int64      `yaml:"int"`
	Bool   *bool       `yaml:"bool"`
	Color  *uint32     `yaml:"color"`
	Ref    *uint32     `yaml:"ref"`
}

type yamlEntry struct {
	Name   string      `yaml:"name"`
	Public bool        `yaml:"public"`
	Values []yamlValue `yaml:"values"`
}

type yamlType struct {
	Name    string      `yaml:"type"`
	Entries []yamlEntry `yaml:"entries"`
}

type yamlTable struct {
	Package string     `yaml:"package"`
	ID      uint8      `yaml:"id"`
	Types   []yamlType `yaml:"resources"`
}

func runBuild(cmd *buildCmd) error {
	var sparse arscwriter.SparseMode
	switch cmd.Sparse {
	case "disabled":
		sparse = arscwriter.SparseDisabled
	case "enabled":
		sparse = arscwriter.SparseEnabled
	case "forced":
		sparse = arscwriter.SparseForced
	default:
		return fmt.Errorf("unknown sparse mode %q", cmd.Sparse)
	}

	raw, err := ioutil.ReadFile(cmd.Input)
	if err != nil {
		return err
	}
	var desc yamlTable
	if err := yaml.UnmarshalStrict(raw, &desc); err != nil {
		return fmt.Errorf("parsing %s: %s", cmd.Input, err.Error())
	}
	if desc.Package == "" {
		return fmt.Errorf("%s: missing package name", cmd.Input)
	}
	if desc.ID == 0 {
		desc.ID = arscwriter.PackageIDApp
	}

	table := arscwriter.NewTable()
	pkg := table.FindOrCreatePackage(desc.Package)
	pkg.ID = int(desc.ID)

	for ti, yt := range desc.Types {
		typ := pkg.FindOrCreateType(yt.Name)
		typ.ID = ti + 1
		for ei, ye := range yt.Entries {
			entry := typ.FindOrCreateEntry(ye.Name)
			entry.ID = ei
			entry.Source = arscwriter.Source{Path: cmd.Input}
			if ye.Public {
				entry.Visibility = arscwriter.VisibilityPublic
			}
			for _, yv := range ye.Values {
				config, err := yv.Config.toConfig()
				if err != nil {
					return fmt.Errorf("%s/%s: %s", yt.Name, ye.Name, err.Error())
				}
				value, err := yv.toValue(table)
				if err != nil {
					return fmt.Errorf("%s/%s: %s", yt.Name, ye.Name, err.Error())
				}
				if err := entry.AddValue(config, "", value); err != nil {
					return fmt.Errorf("%s/%s: %s", yt.Name, ye.Name, err.Error())
				}
			}
		}
	}

	var diag arscwriter.Diagnostics
	out, err := arscwriter.FlattenTable(table, arscwriter.FlattenOptions{
		UseExtendedChunks: cmd.Extended,
		DedupEntries:      cmd.Dedup,
		CompactEntries:    cmd.Compact,
		SparseEntries:     sparse,
		MinSDK:            cmd.MinSDK,
		UTF16Pools:        cmd.UTF16,
	}, &diag)
	if err != nil {
		for _, d := range diag.Errors() {
			fmt.Fprintln(os.Stderr, d.String())
		}
		return err
	}
	return ioutil.WriteFile(cmd.Output, out, 0644)
}

func (yv *yamlValue) toValue(table *arscwriter.Table) (arscwriter.Value, error) {
	switch {
	case yv.String != nil:
		return &arscwriter.String{Ref: table.Strings.MakeRef(*yv.String)}, nil
	case yv.Int != nil:
		return &arscwriter.BinaryPrimitive{
			DataType: arscwriter.DataTypeIntDec,
			Data:     uint32(*yv.Int),
		}, nil
	case yv.Bool != nil:
		var data uint32
		if *yv.Bool {
			data = 0xFFFFFFFF
		}
		return &arscwriter.BinaryPrimitive{
			DataType: arscwriter.DataTypeIntBool,
			Data:     data,
		}, nil
	case yv.Color != nil:
		return &arscwriter.BinaryPrimitive{
			DataType: arscwriter.DataTypeIntColorArgb8,
			Data:     *yv.Color,
		}, nil
	case yv.Ref != nil:
		return &arscwriter.Reference{ID: arscwriter.ResourceID(*yv.Ref)}, nil
	}
	return nil, fmt.Errorf("value has no string, int, bool, color or ref field")
}

func runDump(cmd *dumpCmd) error {
	var parsed *arscwriter.ParsedTable
	var err error
	if strings.HasSuffix(cmd.Input, ".apk") {
		parsed, err = arscwriter.ParseTableFromAPK(cmd.Input)
	} else {
		f, ferr := os.Open(cmd.Input)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		parsed, err = arscwriter.ParseTable(f)
	}
	if err != nil {
		return err
	}

	for _, pkg := range parsed.Packages {
		fmt.Printf("package %s id=0x%02x\n", pkg.Name, pkg.ID)
		for _, lib := range pkg.Libraries {
			fmt.Printf("  library 0x%02x %s\n", lib.ID, lib.Name)
		}
		for _, ov := range pkg.Overlayables {
			fmt.Printf("  overlayable %q actor=%q\n", ov.Name, ov.Actor)
			for _, pol := range ov.Policies {
				fmt.Printf("    policy 0x%08x (%d entries)\n", pol.Flags, len(pol.IDs))
			}
		}
		for _, alias := range pkg.Aliases {
			fmt.Printf("  staged-alias 0x%08x -> 0x%08x\n", uint32(alias.StagedID), uint32(alias.FinalizedID))
		}

		types := append([]*arscwriter.ParsedTypeChunk(nil), pkg.Types...)
		sort.SliceStable(types, func(i, j int) bool { return types[i].TypeID < types[j].TypeID })
		for _, tc := range types {
			name, err := pkg.TypeName(tc.TypeID)
			if err != nil {
				name = fmt.Sprintf("type%d", tc.TypeID)
			}
			enc := "dense"
			if tc.Sparse() {
				enc = "sparse"
			} else if tc.Offset16() {
				enc = "offset16"
			}
			fmt.Printf("  type %s %s %s (%d/%d entries)\n",
				name, tc.Config.String(), enc, len(tc.Entries), tc.EntryCount)
			for _, e := range tc.Entries {
				id := arscwriter.MakeResourceID(uint8(pkg.ID), uint8(tc.TypeID), uint16(e.ID))
				if e.Value != nil {
					fmt.Printf("    0x%08x %s = %s\n", uint32(id), e.Key, formatValue(parsed, e.Value))
				} else {
					fmt.Printf("    0x%08x %s = <map parent=0x%08x %d pairs>\n",
						uint32(id), e.Key, e.ParentID, len(e.Map))
				}
			}
		}
	}
	return nil
}

func formatValue(t *arscwriter.ParsedTable, v *arscwriter.ParsedValue) string {
	switch v.DataType {
	case arscwriter.DataTypeString:
		if s, err := t.GetString(v.Data); err == nil {
			return fmt.Sprintf("%q", s)
		}
	case arscwriter.DataTypeReference, arscwriter.DataTypeDynamicReference:
		return fmt.Sprintf("@0x%08x", v.Data)
	case arscwriter.DataTypeAttribute, arscwriter.DataTypeDynamicAttribute:
		return fmt.Sprintf("?0x%08x", v.Data)
	case arscwriter.DataTypeIntDec:
		return fmt.Sprintf("%d", int32(v.Data))
	case arscwriter.DataTypeIntBool:
		return fmt.Sprintf("%t", v.Data != 0)
	case arscwriter.DataTypeNull:
		return "(null)"
	}
	return fmt.Sprintf("(type 0x%02x) 0x%08x", v.DataType, v.Data)
}
