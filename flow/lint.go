package flow

import (
	"fmt"
	"sort"

	"github.com/fluxionlabs/fluxion/model"
)

// LintStructure reports non-fatal structural findings: blocks that no other
// block (and not the start pointer) references. A flow with warnings still
// loads and transpiles.
func LintStructure(def *model.FlowDefinition) []string {
	referenced := map[string]bool{def.StartBlockID: true}
	for i := range def.Blocks {
		for _, ref := range def.Blocks[i].Outgoing() {
			referenced[ref] = true
		}
	}
	var warnings []string
	for i := range def.Blocks {
		if !referenced[def.Blocks[i].ID] {
			warnings = append(warnings, fmt.Sprintf("block %q is unreachable: nothing references it", def.Blocks[i].ID))
		}
	}
	sort.Strings(warnings)
	return warnings
}
