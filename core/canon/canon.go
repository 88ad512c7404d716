// Package canon holds the fixed canonical book-code table. Book numbers are
// 1-based positions in this table and match the positions of the project
// BooksPresent flag string.
package canon

import "strings"

// Book holds the canonical identity of one book.
type Book struct {
	Num     int
	Code    string
	English string
}

// Count is the number of canonical book codes.
const Count = 123

// books is ordered by book number.
var books = [Count]Book{
	{1, "GEN", "Genesis"}, {2, "EXO", "Exodus"}, {3, "LEV", "Leviticus"},
	{4, "NUM", "Numbers"}, {5, "DEU", "Deuteronomy"}, {6, "JOS", "Joshua"},
	{7, "JDG", "Judges"}, {8, "RUT", "Ruth"}, {9, "1SA", "1 Samuel"},
	{10, "2SA", "2 Samuel"}, {11, "1KI", "1 Kings"}, {12, "2KI", "2 Kings"},
	{13, "1CH", "1 Chronicles"}, {14, "2CH", "2 Chronicles"}, {15, "EZR", "Ezra"},
	{16, "NEH", "Nehemiah"}, {17, "EST", "Esther"}, {18, "JOB", "Job"},
	{19, "PSA", "Psalms"}, {20, "PRO", "Proverbs"}, {21, "ECC", "Ecclesiastes"},
	{22, "SNG", "Song of Songs"}, {23, "ISA", "Isaiah"}, {24, "JER", "Jeremiah"},
	{25, "LAM", "Lamentations"}, {26, "EZK", "Ezekiel"}, {27, "DAN", "Daniel"},
	{28, "HOS", "Hosea"}, {29, "JOL", "Joel"}, {30, "AMO", "Amos"},
	{31, "OBA", "Obadiah"}, {32, "JON", "Jonah"}, {33, "MIC", "Micah"},
	{34, "NAM", "Nahum"}, {35, "HAB", "Habakkuk"}, {36, "ZEP", "Zephaniah"},
	{37, "HAG", "Haggai"}, {38, "ZEC", "Zechariah"}, {39, "MAL", "Malachi"},
	{40, "MAT", "Matthew"}, {41, "MRK", "Mark"}, {42, "LUK", "Luke"},
	{43, "JHN", "John"}, {44, "ACT", "Acts"}, {45, "ROM", "Romans"},
	{46, "1CO", "1 Corinthians"}, {47, "2CO", "2 Corinthians"}, {48, "GAL", "Galatians"},
	{49, "EPH", "Ephesians"}, {50, "PHP", "Philippians"}, {51, "COL", "Colossians"},
	{52, "1TH", "1 Thessalonians"}, {53, "2TH", "2 Thessalonians"}, {54, "1TI", "1 Timothy"},
	{55, "2TI", "2 Timothy"}, {56, "TIT", "Titus"}, {57, "PHM", "Philemon"},
	{58, "HEB", "Hebrews"}, {59, "JAS", "James"}, {60, "1PE", "1 Peter"},
	{61, "2PE", "2 Peter"}, {62, "1JN", "1 John"}, {63, "2JN", "2 John"},
	{64, "3JN", "3 John"}, {65, "JUD", "Jude"}, {66, "REV", "Revelation"},
	{67, "TOB", "Tobit"}, {68, "JDT", "Judith"}, {69, "ESG", "Esther (Greek)"},
	{70, "WIS", "Wisdom of Solomon"}, {71, "SIR", "Sirach"}, {72, "BAR", "Baruch"},
	{73, "LJE", "Letter of Jeremiah"}, {74, "S3Y", "Song of the Three Young Men"}, {75, "SUS", "Susanna"},
	{76, "BEL", "Bel and the Dragon"}, {77, "1MA", "1 Maccabees"}, {78, "2MA", "2 Maccabees"},
	{79, "3MA", "3 Maccabees"}, {80, "4MA", "4 Maccabees"}, {81, "1ES", "1 Esdras"},
	{82, "2ES", "2 Esdras"}, {83, "MAN", "Prayer of Manasseh"}, {84, "PS2", "Psalm 151"},
	{85, "ODA", "Odes"}, {86, "PSS", "Psalms of Solomon"}, {87, "JSA", "Joshua A"},
	{88, "JDB", "Judges B"}, {89, "TBS", "Tobit S"}, {90, "SST", "Susanna Th"},
	{91, "DNT", "Daniel Th"}, {92, "BLT", "Bel Th"}, {93, "XXA", "Extra A"},
	{94, "XXB", "Extra B"}, {95, "XXC", "Extra C"}, {96, "XXD", "Extra D"},
	{97, "XXE", "Extra E"}, {98, "XXF", "Extra F"}, {99, "XXG", "Extra G"},
	{100, "FRT", "Front Matter"}, {101, "BAK", "Back Matter"}, {102, "OTH", "Other Matter"},
	{103, "3ES", "3 Esdras"}, {104, "EZA", "Apocalypse of Ezra"}, {105, "5EZ", "5 Ezra"},
	{106, "6EZ", "6 Ezra"}, {107, "INT", "Introduction"}, {108, "CNC", "Concordance"},
	{109, "GLO", "Glossary"}, {110, "TDX", "Topical Index"}, {111, "NDX", "Names Index"},
	{112, "DAG", "Daniel (Greek)"}, {113, "PS3", "Psalms 152-155"}, {114, "2BA", "2 Baruch"},
	{115, "LBA", "Letter of Baruch"}, {116, "JUB", "Jubilees"}, {117, "ENO", "Enoch"},
	{118, "1MQ", "1 Meqabyan"}, {119, "2MQ", "2 Meqabyan"}, {120, "3MQ", "3 Meqabyan"},
	{121, "REP", "Reproof"}, {122, "4BA", "4 Baruch"}, {123, "LAO", "Laodiceans"},
}

var byCode = func() map[string]int {
	m := make(map[string]int, Count)
	for _, b := range books {
		m[b.Code] = b.Num
	}
	return m
}()

// NumFromCode returns the book number for a canonical code, matching case
// insensitively. It returns 0 for unknown codes.
func NumFromCode(code string) int {
	return byCode[strings.ToUpper(strings.TrimSpace(code))]
}

// CodeFromNum returns the canonical code for a book number, or "" when the
// number is out of range.
func CodeFromNum(num int) string {
	if num < 1 || num > Count {
		return ""
	}
	return books[num-1].Code
}

// Lookup returns the canonical book for a number.
func Lookup(num int) (Book, bool) {
	if num < 1 || num > Count {
		return Book{}, false
	}
	return books[num-1], true
}

// All returns the canonical table in book-number order.
func All() []Book {
	out := make([]Book, Count)
	copy(out, books[:])
	return out
}

// IsCanonical reports whether the book carries scripture text, as opposed to
// peripheral material such as front matter or glossaries.
func IsCanonical(num int) bool {
	return (num >= 1 && num <= 92) || (num >= 103 && num <= 106) || (num >= 112 && num <= 123)
}
