package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"
	"gopkg.in/yaml.v2"

	"github.com/stibium-lang/stibium/ast"
	"github.com/stibium-lang/stibium/gen"
	"github.com/stibium-lang/stibium/layout"
	"github.com/stibium-lang/stibium/lowast"
	"github.com/stibium-lang/stibium/lower"
)

const projectFile = "Stibium.yml"

type stibiumModule struct {
	Package string `yaml:"Package"`
	Target  string `yaml:"Target"`
}

func readProject() (stibiumModule, error) {
	var doc stibiumModule
	data, err := os.ReadFile(projectFile)
	if err != nil {
		return doc, err
	}
	err = yaml.Unmarshal(data, &doc)
	return doc, err
}

// compile runs the shared front half of every command: read the
// interchange tree, lower it, and stand up a layout calculator over the
// result.
func compile(path string) (*lowast.Module, *layout.Calculator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	mod, err := ast.DecodeModule(data)
	if err != nil {
		return nil, nil, err
	}
	low, err := lower.Lower(mod)
	if err != nil {
		return nil, nil, err
	}
	return low, layout.NewCalculator(low), nil
}

func pickTarget(c *cli.Context, doc stibiumModule) (gen.Target, error) {
	if s := c.String("target"); s != "" {
		return gen.TargetFromString(s)
	}
	if out := c.String("output"); out != "" {
		if t, ok := gen.TargetFromPath(out); ok {
			return t, nil
		}
	}
	if doc.Target != "" {
		return gen.TargetFromString(doc.Target)
	}
	return gen.TargetLLVM, nil
}

func fail(err error) cli.ExitCoder {
	tracerr.PrintSourceColor(tracerr.Wrap(err))
	return cli.Exit("", 1)
}

func main() {
	app := &cli.App{
		Name:  "stibc",
		Usage: "stibium compiler back end",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write a project file into the current directory",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return cli.Exit("no package name provided", 1)
					}
					out, err := yaml.Marshal(stibiumModule{Package: name, Target: gen.TargetLLVM.String()})
					if err != nil {
						return fail(err)
					}
					if err := os.WriteFile(projectFile, out, 0o644); err != nil {
						return fail(err)
					}
					return nil
				},
			},
			{
				Name:  "build",
				Usage: "compile an interchange tree to a target",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name: "output",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "llvm, c, js or go",
					},
					&cli.BoolFlag{
						Name:  "dump",
						Value: false,
					},
				},
				Action: func(c *cli.Context) error {
					input := c.Args().First()
					if input == "" {
						return cli.Exit("no input file provided", 1)
					}

					doc, err := readProject()
					if err != nil && !os.IsNotExist(err) {
						return fail(err)
					}

					target, err := pickTarget(c, doc)
					if err != nil {
						return fail(err)
					}

					low, layouts, err := compile(input)
					if err != nil {
						return fail(err)
					}

					res := gen.For(target, layouts).EmitModule(low)
					if !res.Ok() {
						for _, e := range res.Errors {
							fmt.Fprintln(os.Stderr, e)
						}
						return cli.Exit("", 1)
					}

					if c.Bool("dump") {
						fmt.Print(string(res.Code))
						return nil
					}

					out := c.String("output")
					if out == "" {
						name := doc.Package
						if name == "" {
							name = strings.TrimSuffix(input, ".json")
						}
						out = name + "." + targetExt(target)
					}
					if err := os.WriteFile(out, res.Code, 0o644); err != nil {
						return fail(err)
					}
					return nil
				},
			},
			{
				Name:  "lower",
				Usage: "dump the lowered tree of an interchange file",
				Action: func(c *cli.Context) error {
					input := c.Args().First()
					if input == "" {
						return cli.Exit("no input file provided", 1)
					}
					low, _, err := compile(input)
					if err != nil {
						return fail(err)
					}
					repr.Println(low)
					return nil
				},
			},
			{
				Name:  "layout",
				Usage: "print the field offset table of every struct",
				Action: func(c *cli.Context) error {
					input := c.Args().First()
					if input == "" {
						return cli.Exit("no input file provided", 1)
					}
					low, layouts, err := compile(input)
					if err != nil {
						return fail(err)
					}
					for _, st := range low.Structs {
						rec, err := layouts.Of(st.Name)
						if err != nil {
							fmt.Fprintln(os.Stderr, err)
							continue
						}
						fmt.Printf("%s (size %d, align %d)\n", rec.Name, rec.Size, rec.Align)
						for _, f := range rec.Fields {
							fmt.Printf("  %-16s %-12s offset %d\n", f.Name, f.Type, f.Offset)
						}
					}
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func targetExt(t gen.Target) string {
	switch t {
	case gen.TargetC:
		return "c"
	case gen.TargetJS:
		return "js"
	case gen.TargetGo:
		return "go"
	}
	return "ll"
}
