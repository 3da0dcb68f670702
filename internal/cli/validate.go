package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/entities"
	"github.com/shaiso/legisync/internal/pipeline"
)

// NewValidateCmd создаёт команду проверки конфигурации без запуска.
func NewValidateCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [ENTITY...]",
		Short: "Check configuration without calling the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.LoadConfig(cmd)
			if err != nil {
				return err
			}
			out := g.Output()

			result := cfg.Validate()
			registry := entities.DefaultRegistry()
			for _, name := range args {
				spec, err := registry.Get(name)
				if err != nil {
					result.AddError("%v", err)
					continue
				}
				if spec.Validate != nil {
					result.Merge(spec.Validate(cfg))
				}
			}

			printValidation(out, result)
			if result.HasErrors() {
				return pipeline.ConfigurationError(result)
			}
			out.Success("configuration is valid")
			return nil
		},
	}

	addRunFlags(cmd.Flags())
	return cmd
}

func printValidation(out *Output, v domain.ValidationResult) {
	rows := make([][]string, 0, len(v.Errors)+len(v.Warnings))
	for _, e := range v.Errors {
		rows = append(rows, []string{"error", e})
	}
	for _, w := range v.Warnings {
		rows = append(rows, []string{"warning", w})
	}
	if len(rows) == 0 && !out.JSONMode() {
		return
	}
	out.Print([]string{"LEVEL", "MESSAGE"}, rows, v)
}
