package database

import (
	"context"
	"database/sql"
	"fmt"

	"agora/models"
)

// ContainerKind describes one level of the category > forum > topic hierarchy.
type ContainerKind struct {
	Name         string
	Table        string
	ParentTable  string
	ParentColumn string
}

var (
	KindCategory = ContainerKind{Name: "category", Table: "categories"}
	KindForum    = ContainerKind{Name: "forum", Table: "forums", ParentTable: "categories", ParentColumn: "category_id"}
	KindTopic    = ContainerKind{Name: "topic", Table: "topics", ParentTable: "forums", ParentColumn: "forum_id"}
)

// CreateContainer audits and inserts a container. Non-admin actors are rejected by the
// audit guard with models.ErrGuarded.
func (ds *DatabaseService) CreateContainer(ctx context.Context, kind ContainerKind, parentID, actorID int64, c models.BasicContainer) (int64, error) {
	var id int64
	err := ds.withTx(ctx, "Create"+kind.Name, func(tx *sql.Tx) error {
		if err := LogAction(ctx, tx, actorID, models.AuditAdmin, "create "+kind.Name, parentID,
			fmt.Sprintf("create %s `%s`", kind.Name, c.Name)); err != nil {
			return err
		}

		query := "INSERT INTO " + kind.Table + " (name, description) VALUES (?, ?)"
		args := []any{c.Name, c.Description}
		if kind.ParentTable != "" {
			ok, err := exists(ctx, tx, "SELECT 1 FROM "+kind.ParentTable+" WHERE id = ?", parentID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("parent %d of %s: %w", parentID, kind.Name, models.ErrNotFound)
			}
			query = "INSERT INTO " + kind.Table + " (" + kind.ParentColumn + ", name, description) VALUES (?, ?, ?)"
			args = append([]any{parentID}, args...)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", kind.Name, err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	ds.logger.Info("Container created", "kind", kind.Name, "id", id, "actor", actorID)
	return id, nil
}

// UpdateContainer audits and renames a container.
func (ds *DatabaseService) UpdateContainer(ctx context.Context, kind ContainerKind, id, actorID int64, c models.BasicContainer) error {
	return ds.withTx(ctx, "Update"+kind.Name, func(tx *sql.Tx) error {
		if err := LogAction(ctx, tx, actorID, models.AuditAdmin, "update "+kind.Name, id,
			fmt.Sprintf("Update %s with ID `%d`", kind.Name, id)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE "+kind.Table+" SET name = ?, description = ? WHERE id = ?", c.Name, c.Description, id)
		if err != nil {
			return fmt.Errorf("update %s %d: %w", kind.Name, id, err)
		}
		return requireAffected(res, kind.Name, id)
	})
}

// DeleteContainer audits and deletes a container. Its descendants go with it through
// ON DELETE CASCADE, so no thread survives with a partial ledger.
func (ds *DatabaseService) DeleteContainer(ctx context.Context, kind ContainerKind, id, actorID int64) error {
	return ds.withTx(ctx, "Delete"+kind.Name, func(tx *sql.Tx) error {
		if err := LogAction(ctx, tx, actorID, models.AuditAdmin, "delete "+kind.Name, id,
			fmt.Sprintf("Delete %s with ID `%d`", kind.Name, id)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM "+kind.Table+" WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete %s %d: %w", kind.Name, id, err)
		}
		return requireAffected(res, kind.Name, id)
	})
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
	}
	return nil
}
