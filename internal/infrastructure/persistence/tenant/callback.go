package tenant

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerbase/backend/internal/infrastructure/logger"
)

const (
	callbackQuery  = "organization:before_query"
	callbackUpdate = "organization:before_update"
	callbackDelete = "organization:before_delete"
	callbackRow    = "organization:before_row"
)

// OrgCallback adds organization filtering to statements on organization-owned models
type OrgCallback struct {
	column string
}

// NewOrgCallback creates the callback handler
func NewOrgCallback() *OrgCallback {
	return &OrgCallback{column: Column}
}

// Register installs the callbacks on db
func (oc *OrgCallback) Register(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register(callbackQuery, oc.addFilter); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register(callbackUpdate, oc.addFilter); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register(callbackDelete, oc.addFilter); err != nil {
		return err
	}
	// Create is not hooked: the domain sets organization_id on every new row.
	return db.Callback().Row().Before("gorm:row").Register(callbackRow, oc.addFilter)
}

// Remove uninstalls the callbacks
func (oc *OrgCallback) Remove(db *gorm.DB) {
	_ = db.Callback().Query().Remove(callbackQuery)
	_ = db.Callback().Update().Remove(callbackUpdate)
	_ = db.Callback().Delete().Remove(callbackDelete)
	_ = db.Callback().Row().Remove(callbackRow)
}

func (oc *OrgCallback) addFilter(db *gorm.DB) {
	stmt := db.Statement
	if stmt.Context == nil || stmt.Unscoped {
		return
	}
	if stmt.Schema == nil || stmt.Schema.LookUpField(oc.column) == nil {
		return
	}
	if oc.hasCondition(stmt) {
		return
	}

	raw := logger.GetOrganizationID(stmt.Context)
	if raw == "" {
		return
	}
	if _, err := uuid.Parse(raw); err != nil {
		_ = db.AddError(ErrInvalidOrganizationID)
		return
	}

	stmt.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: oc.column},
				Value:  raw,
			},
		},
	})
}

func (oc *OrgCallback) hasCondition(stmt *gorm.Statement) bool {
	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if oc.mentions(expr) {
					return true
				}
			}
		}
	}
	return strings.Contains(stmt.SQL.String(), oc.column)
}

func (oc *OrgCallback) mentions(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return oc.isColumn(e.Column)
	case clause.IN:
		return oc.isColumn(e.Column)
	case clause.Expr:
		return strings.Contains(e.SQL, oc.column)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, oc.column)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if oc.mentions(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if oc.mentions(cond) {
				return true
			}
		}
	}
	return false
}

func (oc *OrgCallback) isColumn(col any) bool {
	switch c := col.(type) {
	case clause.Column:
		return c.Name == oc.column
	case string:
		return c == oc.column
	}
	return false
}
