package dynamodb

import (
	"context"
	"errors"
	"fmt"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// txBuffer collects the writes registered during one transactional scope.
// Nothing reaches the store until commit, so reads inside the scope observe
// the pre-transaction state.
type txBuffer struct {
	max   int
	items []types.TransactWriteItem
}

func (b *txBuffer) add(item types.TransactWriteItem) error {
	if len(b.items) >= b.max {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("transaction exceeds the %d-write limit", b.max))
	}
	b.items = append(b.items, item)
	return nil
}

// txSave stamps the entity and buffers its conditional put. The returned
// copy carries the new version even though the write has not happened yet;
// a failed commit makes that copy stale.
func txSave[T any](ctx context.Context, r *genericRepository[T], buf *txBuffer, entity *T) (*T, error) {
	if entity == nil {
		return nil, pkgerrors.NewValidationError(r.codec.entityName() + " cannot be nil")
	}
	saved, put, _, err := r.prepareSave(ctx, entity)
	if err != nil {
		return nil, err
	}
	if err := buf.add(types.TransactWriteItem{Put: put}); err != nil {
		return nil, err
	}
	return saved, nil
}

func txDelete[T any](r *genericRepository[T], buf *txBuffer, entity *T) error {
	if entity == nil {
		return nil
	}
	m := r.codec.meta(entity)
	if m.ID == uuid.Nil {
		return nil
	}
	return buf.add(deleteByIDItem(r.table, m.ID))
}

type txTeamRepository struct {
	*teamRepository
	buf *txBuffer
}

func (r *txTeamRepository) Save(ctx context.Context, team *entities.Team) (*entities.Team, error) {
	return txSave(ctx, r.genericRepository, r.buf, team)
}

// Delete buffers the cascade: the team row plus every key it owns, all in
// the same commit. The stack-ownership restriction is checked up front
// against the pre-transaction state.
func (r *txTeamRepository) Delete(ctx context.Context, team *entities.Team) error {
	if team == nil || team.ID == uuid.Nil {
		return nil
	}
	owned, err := r.stacks.FindByTeamID(ctx, team.ID)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		return pkgerrors.NewConflictError("team still owns stacks and cannot be deleted").
			WithDetails(map[string]any{"stack_count": len(owned)})
	}
	keys, err := r.keys.FindByTeamID(ctx, team.ID)
	if err != nil {
		return err
	}
	if err := r.buf.add(deleteByIDItem(r.table, team.ID)); err != nil {
		return err
	}
	for _, key := range keys {
		if err := r.buf.add(deleteByIDItem(r.keys.table, key.ID)); err != nil {
			return err
		}
	}
	return nil
}

type txStackRepository struct {
	*stackRepository
	buf *txBuffer
}

func (r *txStackRepository) Save(ctx context.Context, stack *entities.Stack) (*entities.Stack, error) {
	return txSave(ctx, r.genericRepository, r.buf, stack)
}

func (r *txStackRepository) Delete(ctx context.Context, stack *entities.Stack) error {
	return txDelete(r.genericRepository, r.buf, stack)
}

type txCloudProviderRepository struct {
	*cloudProviderRepository
	buf *txBuffer
}

func (r *txCloudProviderRepository) Save(ctx context.Context, provider *entities.CloudProvider) (*entities.CloudProvider, error) {
	return txSave(ctx, r.genericRepository, r.buf, provider)
}

// Delete buffers the provider's removal after checking, against the
// pre-transaction state, that no stacks still reference it.
func (r *txCloudProviderRepository) Delete(ctx context.Context, provider *entities.CloudProvider) error {
	if provider == nil || provider.ID == uuid.Nil {
		return nil
	}
	refs, err := r.stacks.FindByCloudProviderID(ctx, provider.ID)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return pkgerrors.NewConflictError("cloud provider is still referenced by stacks and cannot be deleted").
			WithDetails(map[string]any{"stack_count": len(refs)})
	}
	return r.buf.add(deleteByIDItem(r.table, provider.ID))
}

type txAPIKeyRepository struct {
	*apiKeyRepository
	buf *txBuffer
}

func (r *txAPIKeyRepository) Save(ctx context.Context, key *entities.APIKey) (*entities.APIKey, error) {
	return txSave(ctx, r.genericRepository, r.buf, key)
}

func (r *txAPIKeyRepository) Delete(ctx context.Context, key *entities.APIKey) error {
	return txDelete(r.genericRepository, r.buf, key)
}

// RunInTransaction collects every write fn issues through the repositories
// it receives and commits them as one conditional transaction. Any error
// from fn discards the buffer; nothing has been written at that point.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *ports.Repositories) error) error {
	buf := &txBuffer{max: s.maxTransactItems}

	scoped := &ports.Repositories{
		Teams:          &txTeamRepository{teamRepository: s.teams, buf: buf},
		Stacks:         &txStackRepository{stackRepository: s.stacks, buf: buf},
		CloudProviders: &txCloudProviderRepository{cloudProviderRepository: s.providers, buf: buf},
		APIKeys:        &txAPIKeyRepository{apiKeyRepository: s.keys, buf: buf},
	}
	// A nested scope joins the surrounding buffer and commits with it.
	scoped.Transactions = &nestedRunner{repos: scoped}

	if err := fn(ctx, scoped); err != nil {
		return err
	}
	if len(buf.items) == 0 {
		return nil
	}

	_, err := s.client.TransactWriteItems(ctx, &awsdynamodb.TransactWriteItemsInput{
		TransactItems: buf.items,
	})
	if err != nil {
		return translateCommitError(err)
	}

	s.logger.Debug("transaction committed", zap.Int("writes", len(buf.items)))
	return nil
}

// translateCommitError maps a cancelled transaction to the taxonomy. A
// condition failure on any item means a version race or duplicate create.
func translateCommitError(err error) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed", "TransactionConflict":
				return pkgerrors.NewConflictError("transaction aborted by a concurrent modification").
					WithCause(err)
			}
		}
		return translateError("commit transaction", err)
	}
	var inProgress *types.TransactionInProgressException
	if errors.As(err, &inProgress) {
		return pkgerrors.NewConflictError("transaction already in progress").WithCause(err)
	}
	return translateError("commit transaction", err)
}

// nestedRunner folds a transaction opened inside a transactional scope into
// the surrounding write set, matching the relational backend's behavior.
type nestedRunner struct {
	repos *ports.Repositories
}

func (n *nestedRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *ports.Repositories) error) error {
	return fn(ctx, n.repos)
}
