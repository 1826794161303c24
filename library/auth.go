package library

import (
	"golang.org/x/crypto/bcrypt"
)

// SetPatronPassword hashes and stores a patron's password.
func (d *Database) SetPatronPassword(patronID int64, password string) error {
	if len(password) < 6 {
		return rejectedf("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return internal(err, "hash password")
	}
	res, err := d.db.Exec(`UPDATE patrons SET password_hash=? WHERE id=?`, string(hash), patronID)
	if err != nil {
		return internal(err, "store password for patron %d", patronID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal(err, "store password for patron %d", patronID)
	}
	if n == 0 {
		return notFoundf("patron %d not found", patronID)
	}
	return nil
}

// AuthenticatePatron verifies a patron's password against the stored bcrypt
// hash and records the access time. ref may be a numeric id or an email.
func (d *Database) AuthenticatePatron(ref, password string) (*Patron, error) {
	patron, err := d.FindPatron(ref)
	if err != nil {
		return nil, err
	}
	if patron.PasswordHash == "" {
		return nil, rejectedf("no password set for this patron")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(patron.PasswordHash), []byte(password)); err != nil {
		return nil, rejectedf("invalid credentials")
	}

	now := d.now()
	if _, err := d.db.Exec(`UPDATE patrons SET last_access_at=? WHERE id=?`, now, patron.ID); err != nil {
		return nil, internal(err, "record access for patron %d", patron.ID)
	}
	patron.LastAccessAt = &now
	return patron, nil
}
