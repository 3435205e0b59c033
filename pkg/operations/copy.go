package operations

import (
	"github.com/dukex/stepflow/pkg/flow"
	"github.com/dukex/stepflow/pkg/models"
)

const copySuffix = " Copy"

func (x *edit) duplicateAction(req *DuplicateActionRequest) error {
	target, err := x.action(req.StepName)
	if err != nil {
		return err
	}

	clone := models.CloneAction(target)
	clone.Base().NextAction = nil

	return x.importChain(req.StepName, models.StepLocationAfter, nil, x.prepareCopy(clone))
}

// prepareCopy renames every step of a detached chain to names unused in the
// whole tree and rewrites references between them.
func (x *edit) prepareCopy(head models.Action) models.Action {
	renames := flow.RenameMap(head, flow.NewNameAllocator(flow.StepNames(x.trigger())))

	return flow.TransformAction(head, func(s models.Step) models.Step {
		base := s.Base()
		base.Name = renames[base.Name]
		base.DisplayName += copySuffix

		models.MapStrings(s, func(v string) string {
			return flow.RewriteStepReferences(v, renames)
		})
		models.ClearSampleData(s)

		return s
	})
}

// importChain re-adds a chain step by step through insert, descending into
// loop bodies and router branches.
func (x *edit) importChain(parent string, location models.StepLocation, branchIndex *int, head models.Action) error {
	for a := head; !models.IsNil(a); a = a.Base().NextAction {
		node := detach(a)
		x.validateStep(node)

		if err := x.insert(parent, location, branchIndex, node); err != nil {
			return err
		}

		switch v := a.(type) {
		case *models.LoopOnItemsAction:
			if err := x.importChain(v.Name, models.StepLocationInsideLoop, nil, v.FirstLoopAction); err != nil {
				return err
			}
		case *models.RouterAction:
			for i, b := range v.Branches {
				if models.IsNil(b.Child) {
					continue
				}

				index := i
				if err := x.importChain(v.Name, models.StepLocationInsideBranch, &index, b.Child); err != nil {
					return err
				}
			}
		}

		parent, location, branchIndex = a.Base().Name, models.StepLocationAfter, nil
	}

	return nil
}

func (x *edit) importFlow(req *ImportFlowRequest) error {
	if chain := flow.NextChain(x.trigger()); len(chain) > 0 {
		names := make([]string, len(chain))
		for i, a := range chain {
			names[i] = a.Base().Name
		}

		if err := x.deleteAction(&DeleteActionRequest{Names: names}); err != nil {
			return err
		}
	}

	schemaVersion := ""
	if req.SchemaVersion != nil {
		schemaVersion = *req.SchemaVersion
	}

	trigger, err := x.migrateTrigger(req.Trigger, schemaVersion)
	if err != nil {
		return invalid(x.op, "", "cannot read imported trigger: %v", err)
	}

	if models.IsNil(trigger) {
		return invalid(x.op, "", "imported trigger is empty")
	}

	head := trigger.Base().NextAction
	trigger.Base().NextAction = nil

	if err := x.updateTrigger(&UpdateTriggerRequest{TriggerEnvelope: models.TriggerEnvelope{Trigger: trigger}}); err != nil {
		return err
	}

	if err := x.importChain(trigger.Base().Name, models.StepLocationAfter, nil, head); err != nil {
		return err
	}

	return x.changeName(&ChangeNameRequest{DisplayName: req.DisplayName})
}

func (x *edit) migrateTrigger(raw []byte, schemaVersion string) (models.Trigger, error) {
	if x.engine.migrator != nil {
		return x.engine.migrator.MigrateTrigger(raw, schemaVersion)
	}

	return models.UnmarshalTrigger(raw)
}

func (x *edit) changeName(req *ChangeNameRequest) error {
	x.fv.DisplayName = req.DisplayName

	return nil
}

func (x *edit) changeFolder(req *ChangeFolderRequest) error {
	x.fv.FolderID = req.FolderID

	return nil
}

func (x *edit) lockFlow() error {
	x.fv.State = models.FlowVersionStateLocked

	return nil
}
