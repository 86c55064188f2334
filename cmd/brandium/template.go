package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/storage"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/template"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Validate, render and store post templates",
}

var templateValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a template file for undeclared or invalid variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadTemplateFile(args[0])
		if err != nil {
			return err
		}

		problems := template.ValidateDefinition(def.Content, def.Variables)
		if len(problems) == 0 {
			fmt.Println(successStyle.Render(fmt.Sprintf("Template %q is valid (%d variables).", def.Name, len(def.Variables))))
			return nil
		}
		for _, p := range problems {
			fmt.Println(warnStyle.Render("- " + p))
		}
		return fmt.Errorf("%w: template %q has %d problems", types.ErrValidation, def.Name, len(problems))
	},
}

var templateRenderCmd = &cobra.Command{
	Use:   "render <name|file>",
	Short: "Render a stored template or a template file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateRenderCmd,
}

func runTemplateRenderCmd(cmd *cobra.Command, args []string) error {
	rawVars, _ := cmd.Flags().GetStringArray("var")

	values, err := parseVars(rawVars)
	if err != nil {
		return err
	}

	var def *types.TemplateDefinition
	if _, statErr := os.Stat(args[0]); statErr == nil {
		def, err = loadTemplateFile(args[0])
	} else {
		def, err = storedTemplate(cmd, args[0])
	}
	if err != nil {
		return err
	}

	result := template.Render(def.Content, values, def.Variables)
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: "+w))
	}
	if len(result.MissingVariables) > 0 {
		return fmt.Errorf("%w: missing required variables: %s", types.ErrValidation, strings.Join(result.MissingVariables, ", "))
	}
	fmt.Println(result.Content)
	return nil
}

func storedTemplate(cmd *cobra.Command, name string) (*types.TemplateDefinition, error) {
	application, err := newApp(cmd)
	if err != nil {
		return nil, err
	}
	defer application.Close()

	store, err := application.Store()
	if err != nil {
		return nil, err
	}
	def, err := store.GetTemplate(cmd.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("no template file or stored template named %q", name)
	}
	return def, err
}

var templateSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Store a template file under its name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadTemplateFile(args[0])
		if err != nil {
			return err
		}

		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		store, err := application.Store()
		if err != nil {
			return err
		}
		if err := store.SaveTemplate(cmd.Context(), *def); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Saved template %q.", def.Name)))
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		store, err := application.Store()
		if err != nil {
			return err
		}
		defs, err := store.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}

		if len(defs) == 0 {
			fmt.Println("No templates stored. Run 'brandium template save <file>'.")
			return nil
		}
		for _, def := range defs {
			names := make([]string, len(def.Variables))
			for i, v := range def.Variables {
				names[i] = v.Name
				if v.Required {
					names[i] += "*"
				}
			}
			fmt.Printf("%s  %s\n", titleStyle.Render(def.Name), mutedStyle.Render(strings.Join(names, ", ")))
		}
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		store, err := application.Store()
		if err != nil {
			return err
		}
		if err := store.DeleteTemplate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Template '%s' deleted.\n", args[0])
		return nil
	},
}

// loadTemplateFile reads a YAML template definition. A template without a
// name is named after its file.
func loadTemplateFile(path string) (*types.TemplateDefinition, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	var def types.TemplateDefinition
	if err := yaml.Unmarshal([]byte(data), &def); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = templateNameFromPath(path)
	}
	return &def, nil
}

func templateNameFromPath(path string) string {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// parseVars turns repeated key=value flags into a map. Later keys win.
func parseVars(raw []string) (map[string]string, error) {
	values := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: --var expects key=value, got %q", types.ErrValidation, kv)
		}
		values[key] = value
	}
	return values, nil
}

func init() {
	templateRenderCmd.Flags().StringArrayP("var", "v", nil, "Variable value as key=value (repeatable)")

	templateCmd.AddCommand(templateValidateCmd)
	templateCmd.AddCommand(templateRenderCmd)
	templateCmd.AddCommand(templateSaveCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateDeleteCmd)
}
