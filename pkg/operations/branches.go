package operations

import (
	"fmt"
	"slices"

	"github.com/dukex/stepflow/pkg/models"
)

func (x *edit) addBranch(req *AddBranchRequest) error {
	router, err := x.router(req.StepName)
	if err != nil {
		return err
	}

	// the fallback, when present, stays last
	if limit := router.ConditionCount(); req.BranchIndex < 0 || req.BranchIndex > limit {
		return invalid(x.op, req.StepName, "branch index %d out of range [0, %d]", req.BranchIndex, limit)
	}

	name := req.BranchName
	if name == "" {
		name = fmt.Sprintf("Branch %d", req.BranchIndex+1)
	}

	conditions := req.Conditions
	if len(conditions) == 0 {
		conditions = models.DefaultConditions()
	}

	branch := models.CloneBranch(models.Branch{
		BranchType: models.BranchTypeCondition,
		BranchName: name,
		Conditions: conditions,
	})

	router.Branches = slices.Insert(router.Branches, req.BranchIndex, models.RouterBranch{Branch: branch})
	x.validateStep(router)

	return nil
}

func (x *edit) deleteBranch(req *DeleteBranchRequest) error {
	router, err := x.router(req.StepName)
	if err != nil {
		return err
	}

	if err := x.checkConditionBranch(router, req.BranchIndex); err != nil {
		return err
	}

	router.Branches = slices.Delete(router.Branches, req.BranchIndex, req.BranchIndex+1)
	x.validateStep(router)

	return nil
}

func (x *edit) duplicateBranch(req *DuplicateBranchRequest) error {
	router, err := x.router(req.StepName)
	if err != nil {
		return err
	}

	if err := x.checkConditionBranch(router, req.BranchIndex); err != nil {
		return err
	}

	source := router.Branches[req.BranchIndex]
	index := req.BranchIndex + 1

	err = x.addBranch(&AddBranchRequest{
		StepName:    req.StepName,
		BranchIndex: index,
		BranchName:  source.Branch.BranchName + copySuffix,
		Conditions:  source.Branch.Conditions,
	})
	if err != nil {
		return err
	}

	if models.IsNil(source.Child) {
		return nil
	}

	return x.importChain(req.StepName, models.StepLocationInsideBranch, &index, x.prepareCopy(models.CloneAction(source.Child)))
}

// moveBranch is a no-op for out of range or equal indexes and for the fallback.
func (x *edit) moveBranch(req *MoveBranchRequest) error {
	router, err := x.router(req.StepName)
	if err != nil {
		return err
	}

	n := len(router.Branches)
	src, dst := req.SourceIndex, req.TargetIndex

	if src < 0 || src >= n || dst < 0 || dst >= n || src == dst {
		return nil
	}

	if router.Branches[src].Branch.BranchType == models.BranchTypeFallback ||
		router.Branches[dst].Branch.BranchType == models.BranchTypeFallback {
		return nil
	}

	moved := router.Branches[src]
	router.Branches = slices.Delete(router.Branches, src, src+1)
	router.Branches = slices.Insert(router.Branches, dst, moved)

	return nil
}

func (x *edit) checkConditionBranch(router *models.RouterAction, index int) error {
	if index < 0 || index >= len(router.Branches) {
		return invalid(x.op, router.Name, "branch index %d out of range for %d branches", index, len(router.Branches))
	}

	if router.Branches[index].Branch.BranchType == models.BranchTypeFallback {
		return invalid(x.op, router.Name, "branch %d is the fallback branch", index)
	}

	return nil
}
