package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/legisync/internal/entities"
)

// entityInfo — описание сущности для --json.
type entityInfo struct {
	Name        string `json:"name"`
	Collection  string `json:"collection"`
	ListPath    string `json:"list_path"`
	DetailPath  string `json:"detail_path,omitempty"`
	Description string `json:"description"`
}

// NewEntitiesCmd создаёт команду со списком поддерживаемых сущностей.
func NewEntitiesCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List supported entity types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := entities.DefaultRegistry().Specs()

			infos := make([]entityInfo, len(specs))
			rows := make([][]string, len(specs))
			for i, s := range specs {
				info := entityInfo{
					Name:        s.Name,
					Collection:  s.Collection,
					ListPath:    s.List.Path,
					Description: s.Description,
				}
				if s.Detail != nil {
					info.DetailPath = s.Detail.Path
				}
				infos[i] = info
				rows[i] = []string{info.Name, info.Collection, info.ListPath, info.DetailPath, info.Description}
			}

			g.Output().Print([]string{"NAME", "COLLECTION", "LIST", "DETAIL", "DESCRIPTION"}, rows, infos)
			return nil
		},
	}
}
