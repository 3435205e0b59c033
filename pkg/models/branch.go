package models

type BranchType string

const (
	BranchTypeCondition BranchType = "CONDITION"
	BranchTypeFallback  BranchType = "FALLBACK"
)

type BranchOperator string

const (
	OperatorTextContains             BranchOperator = "TEXT_CONTAINS"
	OperatorTextDoesNotContain       BranchOperator = "TEXT_DOES_NOT_CONTAIN"
	OperatorTextExactlyMatches       BranchOperator = "TEXT_EXACTLY_MATCHES"
	OperatorTextDoesNotExactlyMatch  BranchOperator = "TEXT_DOES_NOT_EXACTLY_MATCH"
	OperatorTextStartsWith           BranchOperator = "TEXT_START_WITH"
	OperatorTextDoesNotStartWith     BranchOperator = "TEXT_DOES_NOT_START_WITH"
	OperatorTextEndsWith             BranchOperator = "TEXT_ENDS_WITH"
	OperatorTextDoesNotEndWith       BranchOperator = "TEXT_DOES_NOT_END_WITH"
	OperatorNumberIsGreaterThan      BranchOperator = "NUMBER_IS_GREATER_THAN"
	OperatorNumberIsLessThan         BranchOperator = "NUMBER_IS_LESS_THAN"
	OperatorNumberIsEqualTo          BranchOperator = "NUMBER_IS_EQUAL_TO"
	OperatorBooleanIsTrue            BranchOperator = "BOOLEAN_IS_TRUE"
	OperatorBooleanIsFalse           BranchOperator = "BOOLEAN_IS_FALSE"
	OperatorExists                   BranchOperator = "EXISTS"
	OperatorDoesNotExist             BranchOperator = "DOES_NOT_EXIST"
	OperatorListIsEmpty              BranchOperator = "LIST_IS_EMPTY"
	OperatorListIsNotEmpty           BranchOperator = "LIST_IS_NOT_EMPTY"
	OperatorListContains             BranchOperator = "LIST_CONTAINS"
	OperatorListDoesNotContain       BranchOperator = "LIST_DOES_NOT_CONTAIN"
	OperatorDateIsBefore             BranchOperator = "DATE_IS_BEFORE"
	OperatorDateIsEqual              BranchOperator = "DATE_IS_EQUAL"
	OperatorDateIsAfter              BranchOperator = "DATE_IS_AFTER"
)

var singleValueOperators = map[BranchOperator]bool{
	OperatorBooleanIsTrue:  true,
	OperatorBooleanIsFalse: true,
	OperatorExists:         true,
	OperatorDoesNotExist:   true,
	OperatorListIsEmpty:    true,
	OperatorListIsNotEmpty: true,
}

var knownOperators = map[BranchOperator]bool{
	OperatorTextContains: true, OperatorTextDoesNotContain: true,
	OperatorTextExactlyMatches: true, OperatorTextDoesNotExactlyMatch: true,
	OperatorTextStartsWith: true, OperatorTextDoesNotStartWith: true,
	OperatorTextEndsWith: true, OperatorTextDoesNotEndWith: true,
	OperatorNumberIsGreaterThan: true, OperatorNumberIsLessThan: true, OperatorNumberIsEqualTo: true,
	OperatorBooleanIsTrue: true, OperatorBooleanIsFalse: true,
	OperatorExists: true, OperatorDoesNotExist: true,
	OperatorListIsEmpty: true, OperatorListIsNotEmpty: true,
	OperatorListContains: true, OperatorListDoesNotContain: true,
	OperatorDateIsBefore: true, OperatorDateIsEqual: true, OperatorDateIsAfter: true,
}

// IsKnown reports whether o is a supported operator.
func (o BranchOperator) IsKnown() bool {
	return knownOperators[o]
}

// IsSingleValue reports whether o ignores SecondValue.
func (o BranchOperator) IsSingleValue() bool {
	return singleValueOperators[o]
}

type BranchCondition struct {
	FirstValue    string         `json:"firstValue"`
	SecondValue   string         `json:"secondValue,omitempty"`
	Operator      BranchOperator `json:"operator"`
	CaseSensitive bool           `json:"caseSensitive,omitempty"`
}

// Branch is one router branch. Conditions is a disjunction of conjunctions.
type Branch struct {
	BranchType BranchType          `json:"branchType"`
	BranchName string              `json:"branchName"`
	Conditions [][]BranchCondition `json:"conditions,omitempty"`
}

// DefaultConditions is the condition set of a newly added branch.
func DefaultConditions() [][]BranchCondition {
	return [][]BranchCondition{{{
		FirstValue:    "",
		SecondValue:   "",
		Operator:      OperatorTextExactlyMatches,
		CaseSensitive: false,
	}}}
}

// FallbackBranch returns the branch taken when no condition matches.
func FallbackBranch() Branch {
	return Branch{BranchType: BranchTypeFallback, BranchName: "Otherwise"}
}
