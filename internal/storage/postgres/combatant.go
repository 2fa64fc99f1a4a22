package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// ErrCombatantNotFound is returned when a combatant lookup yields no results.
var ErrCombatantNotFound = errors.New("combatant not found")

// ErrCombatantExists is returned when an account already owns a combatant.
var ErrCombatantExists = errors.New("combatant already created")

// ErrNameTaken is returned when another combatant already uses the name.
var ErrNameTaken = errors.New("combatant name already taken")

const combatantColumns = `id, name, description, image_url, speed, melee, ranged, defense, coin, xp`

// CombatantRepository loads and creates combatant profiles. Battle results
// are never written back through it.
type CombatantRepository struct {
	db *pgxpool.Pool
}

// NewCombatantRepository creates a CombatantRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatantRepository(db *pgxpool.Pool) *CombatantRepository {
	return &CombatantRepository{db: db}
}

// Create inserts c as the combatant owned by accountID. An empty c.ID is
// replaced by a new uuid.
//
// Precondition: c must pass Validate once an id is assigned.
// Postcondition: Returns the stored combatant, ErrCombatantExists if the
// account already has one, or ErrNameTaken.
func (r *CombatantRepository) Create(ctx context.Context, accountID int64, c *combatant.Combatant) (*combatant.Combatant, error) {
	in := *c
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO combatants
			(id, account_id, name, description, image_url, speed, melee, ranged, defense, coin, xp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+combatantColumns,
		in.ID, accountID, in.Name, in.Description, in.ImageURL,
		in.Speed, in.Melee, in.Ranged, in.Defense, in.Coin, in.XP,
	)
	out, err := scanCombatant(row)
	if err != nil {
		if constraint, dup := isDuplicateKeyError(err); dup {
			if constraint == "combatants_account_id_key" {
				return nil, ErrCombatantExists
			}
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("inserting combatant: %w", err)
	}
	return out, nil
}

// Load returns the combatant with the given id.
//
// Postcondition: Returns a combatant with HP == combatant.StartingHP, or
// ErrCombatantNotFound.
func (r *CombatantRepository) Load(ctx context.Context, id string) (*combatant.Combatant, error) {
	return r.loadOne(ctx, `SELECT `+combatantColumns+` FROM combatants WHERE id = $1`, id)
}

// LoadByAccount returns the combatant owned by accountID.
//
// Postcondition: Returns the combatant or ErrCombatantNotFound.
func (r *CombatantRepository) LoadByAccount(ctx context.Context, accountID int64) (*combatant.Combatant, error) {
	return r.loadOne(ctx, `SELECT `+combatantColumns+` FROM combatants WHERE account_id = $1`, accountID)
}

// LoadByName returns the combatant whose name matches, ignoring case.
//
// Postcondition: Returns the combatant or ErrCombatantNotFound.
func (r *CombatantRepository) LoadByName(ctx context.Context, name string) (*combatant.Combatant, error) {
	return r.loadOne(ctx, `SELECT `+combatantColumns+` FROM combatants WHERE lower(name) = lower($1)`, name)
}

func (r *CombatantRepository) loadOne(ctx context.Context, query string, arg any) (*combatant.Combatant, error) {
	c, err := scanCombatant(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCombatantNotFound
		}
		return nil, fmt.Errorf("querying combatant: %w", err)
	}
	return c, nil
}

func scanCombatant(row pgx.Row) (*combatant.Combatant, error) {
	var c combatant.Combatant
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.ImageURL,
		&c.Speed, &c.Melee, &c.Ranged, &c.Defense,
		&c.Coin, &c.XP,
	); err != nil {
		return nil, err
	}
	c.HP = combatant.StartingHP
	return &c, nil
}
